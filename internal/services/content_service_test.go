// internal/services/content_service_test.go
package services

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pin4sf/loom-converter/internal/errors"
	"github.com/Pin4sf/loom-converter/internal/models"
)

var ideaIDPattern = regexp.MustCompile(`^idea-[0-9a-f]{8}$`)

func TestExtractIdeasStrictJSON(t *testing.T) {
	ideas, err := ExtractIdeas(`[
		{"title": "First Idea", "description": "covers the basics"},
		{"title": "Second Idea", "description": "goes deeper"}
	]`)

	require.NoError(t, err)
	require.Len(t, ideas, 2)

	assert.Equal(t, "First Idea", ideas[0].Title)
	assert.Equal(t, "covers the basics", ideas[0].Description)
	assert.Equal(t, "Second Idea", ideas[1].Title)

	assert.Regexp(t, ideaIDPattern, ideas[0].ID)
	assert.Regexp(t, ideaIDPattern, ideas[1].ID)
	assert.NotEqual(t, ideas[0].ID, ideas[1].ID)
}

func TestExtractIdeasRecoversFromProse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "leading prose",
			text: `Here are some ideas for you:
[{"title": "Wrapped", "description": "inside prose"}]
Let me know if you want more.`,
		},
		{
			name: "markdown fence",
			text: "```json\n[{\"title\": \"Wrapped\", \"description\": \"inside prose\"}]\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ideas, err := ExtractIdeas(tt.text)
			require.NoError(t, err)
			require.Len(t, ideas, 1)
			assert.Equal(t, "Wrapped", ideas[0].Title)
			assert.Equal(t, "inside prose", ideas[0].Description)
		})
	}
}

func TestExtractIdeasFillsDefaults(t *testing.T) {
	ideas, err := ExtractIdeas(`[{"title": "", "description": ""}, {}]`)

	require.NoError(t, err)
	require.Len(t, ideas, 2)
	for _, idea := range ideas {
		assert.Equal(t, "Untitled Idea", idea.Title)
		assert.Equal(t, "No description provided", idea.Description)
	}
}

func TestExtractIdeasEmptyArray(t *testing.T) {
	ideas, err := ExtractIdeas(`[]`)

	require.NoError(t, err)
	assert.Empty(t, ideas)
}

func TestExtractIdeasUnparseable(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain prose", "I could not produce ideas for this transcript."},
		{"json object", `{"title": "not an array"}`},
		{"broken array", `[{"title": "oops"`},
		{"null literal", "null"},
		{"padded null", "  null\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractIdeas(tt.text)
			require.Error(t, err)
			assert.True(t, errors.IsParseError(err))
			assert.Equal(t, "Failed to parse response from AI service. The response was not in the expected JSON format.", err.Error())
		})
	}
}

func TestGenerateIdeasEndToEnd(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptFromRequest(r)
		assert.Contains(t, prompt, "my transcript")
		anthropicCompletion(w, `[{"title": "From Stub", "description": "stub description"}]`)
	})
	svc := NewContentService(llmSvc)

	ideas, err := svc.GenerateIdeas(context.Background(), anthropicConfig(), "my transcript", "")

	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, "From Stub", ideas[0].Title)
}

func TestGenerateIdeasRequiresTranscript(t *testing.T) {
	svc := NewContentService(NewLLMService())

	_, err := svc.GenerateIdeas(context.Background(), anthropicConfig(), "   ", "")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestGenerateIdeasUnparseableResponse(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicCompletion(w, "sorry, I cannot help with that")
	})
	svc := NewContentService(llmSvc)

	_, err := svc.GenerateIdeas(context.Background(), anthropicConfig(), "transcript", "")

	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestGenerateScript(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicCompletion(w, "generated script body")
	})
	svc := NewContentService(llmSvc)

	idea := models.ContentIdea{ID: "idea-deadbeef", Title: "The Idea", Description: "desc"}
	script, err := svc.GenerateScript(context.Background(), anthropicConfig(), idea, "transcript", "")

	require.NoError(t, err)
	assert.Regexp(t, `^script-[0-9a-f]{8}$`, script.ID)
	assert.Equal(t, "idea-deadbeef", script.IdeaID)
	assert.Equal(t, "The Idea", script.Title)
	assert.Equal(t, "generated script body", script.Script)
}

func TestRefineScriptKeepsIdentity(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicCompletion(w, "refined body")
	})
	svc := NewContentService(llmSvc)

	original := models.VideoScript{
		ID:     "script-deadbeef",
		IdeaID: "idea-deadbeef",
		Title:  "The Idea",
		Script: "original body",
	}

	refined, err := svc.RefineScript(context.Background(), anthropicConfig(), original, "tighten the intro")

	require.NoError(t, err)
	assert.Equal(t, original.ID, refined.ID)
	assert.Equal(t, original.IdeaID, refined.IdeaID)
	assert.Equal(t, original.Title, refined.Title)
	assert.Equal(t, "refined body", refined.Script)
}

func TestRefineScriptValidation(t *testing.T) {
	svc := NewContentService(NewLLMService())
	script := models.VideoScript{ID: "script-deadbeef", Script: "body"}

	_, err := svc.RefineScript(context.Background(), anthropicConfig(), models.VideoScript{}, "instructions")
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))

	_, err = svc.RefineScript(context.Background(), anthropicConfig(), script, "  ")
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestRegenerateScriptGetsNewIdentity(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicCompletion(w, "fresh take")
	})
	svc := NewContentService(llmSvc)

	idea := models.ContentIdea{ID: "idea-deadbeef", Title: "The Idea"}
	script, err := svc.RegenerateScript(context.Background(), anthropicConfig(), idea, "transcript", "try a story arc")

	require.NoError(t, err)
	assert.Regexp(t, `^script-[0-9a-f]{8}$`, script.ID)
	assert.Equal(t, idea.ID, script.IdeaID)
	assert.Equal(t, "fresh take", script.Script)
}

func TestRegenerateScriptRequiresInstructions(t *testing.T) {
	svc := NewContentService(NewLLMService())
	idea := models.ContentIdea{ID: "idea-deadbeef", Title: "The Idea"}

	_, err := svc.RegenerateScript(context.Background(), anthropicConfig(), idea, "transcript", "")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestGenerateLinkedInPost(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		anthropicCompletion(w, "ready-to-post update #AI")
	})
	svc := NewContentService(llmSvc)

	script := models.VideoScript{ID: "script-deadbeef", Title: "The Idea", Script: "body"}
	post, err := svc.GenerateLinkedInPost(context.Background(), anthropicConfig(), script)

	require.NoError(t, err)
	assert.Regexp(t, `^linkedin-[0-9a-f]{8}$`, post.ID)
	assert.Equal(t, "script-deadbeef", post.ScriptID)
	assert.Equal(t, "ready-to-post update #AI", post.Post)
}

func TestTestConnection(t *testing.T) {
	llmSvc := newStubLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ConnectionTestPrompt, promptFromRequest(r))
		anthropicCompletion(w, "API connection successful")
	})
	svc := NewContentService(llmSvc)

	text, err := svc.TestConnection(context.Background(), anthropicConfig())

	require.NoError(t, err)
	assert.Equal(t, "API connection successful", text)
}
