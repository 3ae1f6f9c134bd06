// internal/services/prompts.go
package services

import (
	"fmt"

	"github.com/Pin4sf/loom-converter/internal/models"
)

// ConnectionTestPrompt is sent by TestConnection to verify credentials.
const ConnectionTestPrompt = "Return the text 'API connection successful' as a response."

// BuildIdeasPrompt asks for video content ideas as a strict JSON array.
func BuildIdeasPrompt(transcript, instructions string) string {
	instructionsBlock := ""
	if instructions != "" {
		instructionsBlock = "ADDITIONAL INSTRUCTIONS: " + instructions
	}

	return fmt.Sprintf(`
You are an expert content strategist for an AI consulting company. Based on this transcript & being open to adding more to it, what are some ideas for videos that you can come up with?

TRANSCRIPT:
%s

%s

For each idea, provide:
1. A catchy title
2. A brief description of what the video would cover

IMPORTANT: Format your response STRICTLY as a valid JSON array of objects with 'title' and 'description' fields. Do not include any explanations, markdown formatting, or additional text outside of the JSON array.
Example format:
[
  {
    "title": "Example Title 1",
    "description": "Example description 1"
  },
  {
    "title": "Example Title 2",
    "description": "Example description 2"
  }
]
`, transcript, instructionsBlock)
}

// BuildScriptPrompt converts a transcript into a blog-style script for one idea.
func BuildScriptPrompt(idea models.ContentIdea, transcript, instructions string) string {
	instructionsBlock := ""
	if instructions != "" {
		instructionsBlock = "ADDITIONAL INSTRUCTIONS: " + instructions
	}

	return fmt.Sprintf(`
Convert this transcript into a blog-style video script, keeping the proper hook & tone, refining the examples and concepts to make them clearer. The script should be written in first person and feel personal.

CONTENT IDEA:
Title: %s
Description: %s

ORIGINAL TRANSCRIPT:
%s

%s

Create a well-structured blog-style script that includes:
1. An attention-grabbing introduction
2. Clear sections with headers
3. Engaging talking points in first person perspective
4. Personal anecdotes or examples where appropriate

Format your response as a well-structured blog post that could be read as a script. Use a conversational tone throughout.
`, idea.Title, idea.Description, transcript, instructionsBlock)
}

// BuildRefinePrompt edits an existing script per the instructions.
func BuildRefinePrompt(script models.VideoScript, instructions string) string {
	return fmt.Sprintf(`
Refine this video script based on the following instructions. Maintain the original structure and tone where appropriate, but implement the requested changes.

ORIGINAL SCRIPT:
%s

REFINEMENT INSTRUCTIONS:
%s

Please provide the complete refined script. Keep what works well from the original and modify only what needs to be changed according to the instructions.
`, script.Script, instructions)
}

// BuildRegeneratePrompt writes a fresh script for an idea from scratch.
func BuildRegeneratePrompt(idea models.ContentIdea, transcript, instructions string) string {
	return fmt.Sprintf(`
Create a completely new blog-style video script based on the content idea and transcript. Follow the specific instructions provided.

CONTENT IDEA:
Title: %s
Description: %s

ORIGINAL TRANSCRIPT:
%s

SPECIFIC INSTRUCTIONS:
%s

Create a well-structured blog-style script that includes:
1. An attention-grabbing introduction
2. Clear sections with headers
3. Engaging talking points in first person perspective
4. Personal anecdotes or examples where appropriate

Format your response as a well-structured blog post that could be read as a script. Use a conversational tone throughout.
`, idea.Title, idea.Description, transcript, instructions)
}

// BuildLinkedInPrompt promotes a finished script as a LinkedIn update.
func BuildLinkedInPrompt(script models.VideoScript) string {
	return fmt.Sprintf(`
You are a social media expert specializing in LinkedIn content for an AI consulting company. Create an engaging LinkedIn post to promote a video with the following script.

VIDEO TITLE: %s

VIDEO SCRIPT:
%s

Create a LinkedIn post that:
1. Has an attention-grabbing first line
2. Highlights the key value points from the video
3. Includes relevant hashtags related to AI consulting and technology
4. Has a clear call-to-action

Format your response as a ready-to-post LinkedIn update. Do not include any explanations or additional text outside the post.
`, script.Title, script.Script)
}
