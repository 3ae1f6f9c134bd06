// internal/services/content_service.go
package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/errors"
	"github.com/Pin4sf/loom-converter/internal/models"
	"github.com/Pin4sf/loom-converter/internal/utils"
)

// Widest bracketed span in the response, for recovering a JSON array
// wrapped in prose or markdown fences.
var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// ContentService implements the generation stages on top of the LLM
// dispatch layer.
type ContentService struct {
	llm    *LLMService
	logger *utils.Logger
}

// NewContentService creates the stage service
func NewContentService(llm *LLMService) *ContentService {
	return &ContentService{
		llm:    llm,
		logger: utils.GetLogger(),
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// TestConnection runs a cheap round trip to verify the configured key.
func (s *ContentService) TestConnection(ctx context.Context, apiCfg models.APIConfig) (string, error) {
	budgets := config.GetCurrentConfig().Budgets
	return s.llm.Generate(ctx, apiCfg, ConnectionTestPrompt, budgets.ConnectionTest)
}

// GenerateIdeas produces content ideas from a transcript.
func (s *ContentService) GenerateIdeas(ctx context.Context, apiCfg models.APIConfig, transcript, instructions string) ([]models.ContentIdea, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.NewValidationError("Transcript is required.", nil)
	}

	budgets := config.GetCurrentConfig().Budgets
	prompt := BuildIdeasPrompt(transcript, instructions)

	text, err := s.llm.Generate(ctx, apiCfg, prompt, budgets.Ideas)
	if err != nil {
		return nil, err
	}

	ideas, err := ExtractIdeas(text)
	if err != nil {
		s.logger.Warn("failed to parse ideas response", map[string]interface{}{
			"response_length": len(text),
		})
		return nil, err
	}

	return ideas, nil
}

// ExtractIdeas parses the model response into content ideas. It tries a
// strict parse first, then recovers the widest JSON array embedded in
// surrounding prose.
func ExtractIdeas(text string) ([]models.ContentIdea, error) {
	if ideas, ok := parseIdeaArray(text); ok {
		return ideas, nil
	}

	if match := jsonArrayPattern.FindString(text); match != "" {
		if ideas, ok := parseIdeaArray(match); ok {
			return ideas, nil
		}
	}

	return nil, errors.NewParseError("Failed to parse response from AI service. The response was not in the expected JSON format.", nil)
}

func parseIdeaArray(text string) ([]models.ContentIdea, bool) {
	// json.Unmarshal accepts "null" into a slice; only an actual JSON
	// array counts as a parsed idea list.
	if !strings.HasPrefix(strings.TrimSpace(text), "[") {
		return nil, false
	}

	var raw []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}

	ideas := make([]models.ContentIdea, 0, len(raw))
	for _, item := range raw {
		title := item.Title
		if title == "" {
			title = "Untitled Idea"
		}
		description := item.Description
		if description == "" {
			description = "No description provided"
		}
		ideas = append(ideas, models.ContentIdea{
			ID:          newID("idea"),
			Title:       title,
			Description: description,
		})
	}

	return ideas, true
}

// GenerateScript writes a blog-style video script for one idea.
func (s *ContentService) GenerateScript(ctx context.Context, apiCfg models.APIConfig, idea models.ContentIdea, transcript, instructions string) (models.VideoScript, error) {
	if strings.TrimSpace(transcript) == "" {
		return models.VideoScript{}, errors.NewValidationError("Transcript is required.", nil)
	}

	budgets := config.GetCurrentConfig().Budgets
	prompt := BuildScriptPrompt(idea, transcript, instructions)

	text, err := s.llm.Generate(ctx, apiCfg, prompt, budgets.Script)
	if err != nil {
		return models.VideoScript{}, err
	}

	return models.VideoScript{
		ID:     newID("script"),
		IdeaID: idea.ID,
		Title:  idea.Title,
		Script: text,
	}, nil
}

// RefineScript edits an existing script per the instructions, keeping
// its identity.
func (s *ContentService) RefineScript(ctx context.Context, apiCfg models.APIConfig, script models.VideoScript, instructions string) (models.VideoScript, error) {
	if strings.TrimSpace(script.Script) == "" {
		return models.VideoScript{}, errors.NewValidationError("Script text is required.", nil)
	}
	if strings.TrimSpace(instructions) == "" {
		return models.VideoScript{}, errors.NewValidationError("Refinement instructions are required.", nil)
	}

	budgets := config.GetCurrentConfig().Budgets
	prompt := BuildRefinePrompt(script, instructions)

	text, err := s.llm.Generate(ctx, apiCfg, prompt, budgets.Refine)
	if err != nil {
		return models.VideoScript{}, err
	}

	return models.VideoScript{
		ID:     script.ID,
		IdeaID: script.IdeaID,
		Title:  script.Title,
		Script: text,
	}, nil
}

// RegenerateScript writes a brand new script for the idea, with a new
// identity.
func (s *ContentService) RegenerateScript(ctx context.Context, apiCfg models.APIConfig, idea models.ContentIdea, transcript, instructions string) (models.VideoScript, error) {
	if strings.TrimSpace(transcript) == "" {
		return models.VideoScript{}, errors.NewValidationError("Transcript is required.", nil)
	}
	if strings.TrimSpace(instructions) == "" {
		return models.VideoScript{}, errors.NewValidationError("Regeneration instructions are required.", nil)
	}

	budgets := config.GetCurrentConfig().Budgets
	prompt := BuildRegeneratePrompt(idea, transcript, instructions)

	text, err := s.llm.Generate(ctx, apiCfg, prompt, budgets.Regenerate)
	if err != nil {
		return models.VideoScript{}, err
	}

	return models.VideoScript{
		ID:     newID("script"),
		IdeaID: idea.ID,
		Title:  idea.Title,
		Script: text,
	}, nil
}

// GenerateLinkedInPost promotes a finished script as a LinkedIn update.
func (s *ContentService) GenerateLinkedInPost(ctx context.Context, apiCfg models.APIConfig, script models.VideoScript) (models.LinkedInPost, error) {
	if strings.TrimSpace(script.Script) == "" {
		return models.LinkedInPost{}, errors.NewValidationError("Script text is required.", nil)
	}

	budgets := config.GetCurrentConfig().Budgets
	prompt := BuildLinkedInPrompt(script)

	text, err := s.llm.Generate(ctx, apiCfg, prompt, budgets.LinkedIn)
	if err != nil {
		return models.LinkedInPost{}, err
	}

	return models.LinkedInPost{
		ID:       newID("linkedin"),
		ScriptID: script.ID,
		Post:     text,
	}, nil
}
