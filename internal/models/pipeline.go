// internal/models/pipeline.go
package models

// PipelineStage identifies a step of the generation pipeline.
type PipelineStage string

const (
	StageIdle     PipelineStage = "idle"
	StageIdeas    PipelineStage = "ideas"
	StageScripts  PipelineStage = "scripts"
	StageLinkedIn PipelineStage = "linkedin"
	StageComplete PipelineStage = "complete"
)

// CompletedSteps records which stages have produced a result at least once.
type CompletedSteps struct {
	Ideas    bool `json:"ideas"`
	Scripts  bool `json:"scripts"`
	LinkedIn bool `json:"linkedin"`
}

// StepPrompts holds the optional per-step instructions entered between
// step-mode checkpoints.
type StepPrompts struct {
	Ideas    string `json:"ideas"`
	Scripts  string `json:"scripts"`
	LinkedIn string `json:"linkedin"`
}

// PipelineState is the orchestrator-owned status of one session.
// Progress is a cosmetic percentage and only guaranteed to be non-decreasing
// within a run.
type PipelineState struct {
	Stage          PipelineStage  `json:"stage"`
	Progress       int            `json:"progress"`
	Message        string         `json:"message"`
	Paused         bool           `json:"paused"`
	CompletedSteps CompletedSteps `json:"completed_steps"`
	StepPrompts    StepPrompts    `json:"step_prompts"`
}

// Session owns every artifact generated from one transcript. All mutation
// goes through the pipeline service.
type Session struct {
	ID           string `json:"id"`
	Transcript   string `json:"transcript"`
	Instructions string `json:"instructions"`

	Ideas         []ContentIdea  `json:"ideas"`
	Scripts       []VideoScript  `json:"scripts"`
	LinkedInPosts []LinkedInPost `json:"linkedin_posts"`

	SelectedIdeaID   string `json:"selected_idea_id"`
	SelectedScriptID string `json:"selected_script_id"`

	State PipelineState `json:"state"`
}

// ScriptForIdea returns the script generated for the given idea, if any.
func (s *Session) ScriptForIdea(ideaID string) (VideoScript, bool) {
	for _, script := range s.Scripts {
		if script.IdeaID == ideaID {
			return script, true
		}
	}
	return VideoScript{}, false
}

// PostForScript returns the LinkedIn post generated for the given script, if any.
func (s *Session) PostForScript(scriptID string) (LinkedInPost, bool) {
	for _, post := range s.LinkedInPosts {
		if post.ScriptID == scriptID {
			return post, true
		}
	}
	return LinkedInPost{}, false
}

// IdeaByID looks up an idea in the session.
func (s *Session) IdeaByID(ideaID string) (ContentIdea, bool) {
	for _, idea := range s.Ideas {
		if idea.ID == ideaID {
			return idea, true
		}
	}
	return ContentIdea{}, false
}

// ScriptByID looks up a script in the session.
func (s *Session) ScriptByID(scriptID string) (VideoScript, bool) {
	for _, script := range s.Scripts {
		if script.ID == scriptID {
			return script, true
		}
	}
	return VideoScript{}, false
}

// Clone returns a deep copy of the session. Callers outside the
// pipeline lock must work on clones, never on the live record.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Ideas = append([]ContentIdea(nil), s.Ideas...)
	clone.Scripts = append([]VideoScript(nil), s.Scripts...)
	clone.LinkedInPosts = append([]LinkedInPost(nil), s.LinkedInPosts...)
	return &clone
}
