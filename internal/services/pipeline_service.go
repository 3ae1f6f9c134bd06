// internal/services/pipeline_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Pin4sf/loom-converter/internal/errors"
	"github.com/Pin4sf/loom-converter/internal/models"
	"github.com/Pin4sf/loom-converter/internal/storage"
	"github.com/Pin4sf/loom-converter/internal/utils"
)

const sessionsDir = "sessions"

// PipelineService owns sessions and orchestrates the generation
// pipeline over them, in run-all or step mode. Sessions are addressed
// by id. The live records never leave the service: callers get deep
// copies, so reads and JSON encoding cannot race a running pipeline.
type PipelineService struct {
	content  *ContentService
	progress *ProgressService
	storage  *storage.FileStorage
	logger   *utils.Logger

	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewPipelineService creates the orchestrator
func NewPipelineService(content *ContentService, progress *ProgressService, fs *storage.FileStorage) *PipelineService {
	return &PipelineService{
		content:  content,
		progress: progress,
		storage:  fs,
		logger:   utils.GetLogger(),
		sessions: make(map[string]*models.Session),
	}
}

// CreateSession starts a session for one transcript.
func (s *PipelineService) CreateSession(transcript, instructions string) (*models.Session, error) {
	if transcript == "" {
		return nil, errors.NewValidationError("Transcript is required.", nil)
	}

	session := &models.Session{
		ID:           newID("session"),
		Transcript:   transcript,
		Instructions: instructions,
		State: models.PipelineState{
			Stage: models.StageIdle,
		},
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	clone := session.Clone()
	data, err := json.MarshalIndent(session, "", "  ")
	s.mu.Unlock()
	s.persist(session.ID, data, err)

	return clone, nil
}

// live returns the in-memory record, falling back to the snapshot on
// disk after a restart. Callers must not expose the result.
func (s *PipelineService) live(id string) (*models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return session, nil
	}

	var loaded models.Session
	if s.storage.FileExists(sessionsDir, id+".json") {
		if err := s.storage.LoadJSONFile(sessionsDir, id+".json", &loaded); err == nil {
			s.mu.Lock()
			s.sessions[loaded.ID] = &loaded
			s.mu.Unlock()
			return &loaded, nil
		}
	}

	return nil, errors.NewNotFoundError(fmt.Sprintf("session not found: %s", id))
}

// GetSession returns a copy of the session state.
func (s *PipelineService) GetSession(id string) (*models.Session, error) {
	session, err := s.live(id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(session), nil
}

// snapshot copies the session under the read lock.
func (s *PipelineService) snapshot(session *models.Session) *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return session.Clone()
}

// persist writes the JSON that was marshaled while the lock was held.
func (s *PipelineService) persist(id string, data []byte, err error) {
	if err == nil {
		err = s.storage.SaveTextFile(sessionsDir, id+".json", data)
	}
	if err != nil {
		s.logger.Warn("failed to persist session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
}

// mutate applies fn and marshals the session before releasing the
// lock, so the write to disk never encodes a record another goroutine
// is still mutating.
func (s *PipelineService) mutate(session *models.Session, fn func(*models.Session)) {
	s.mu.Lock()
	fn(session)
	data, err := json.MarshalIndent(session, "", "  ")
	s.mu.Unlock()
	s.persist(session.ID, data, err)
}

// StartRunAll kicks off a full pipeline run in the background and
// returns a task id for progress subscription.
func (s *PipelineService) StartRunAll(id string, apiCfg models.APIConfig) (string, error) {
	session, err := s.live(id)
	if err != nil {
		return "", err
	}

	taskID := newID("task")
	tracker := s.progress.CreateTracker(taskID)

	s.mutate(session, func(sess *models.Session) {
		sess.State.Paused = false
		sess.Ideas = nil
		sess.Scripts = nil
		sess.LinkedInPosts = nil
		sess.SelectedIdeaID = ""
		sess.SelectedScriptID = ""
		sess.State.Stage = models.StageIdeas
		sess.State.Progress = 0
		sess.State.Message = ""
	})

	go s.runAll(context.Background(), session, apiCfg, tracker)

	return taskID, nil
}

func (s *PipelineService) setStatus(session *models.Session, tracker *ProgressTracker, stage models.PipelineStage, progress int) {
	message := fmt.Sprintf("Processing %s...", stage)
	if stage == models.StageComplete {
		message = "Generation complete"
	}

	s.mutate(session, func(sess *models.Session) {
		sess.State.Stage = stage
		if progress > sess.State.Progress {
			sess.State.Progress = progress
		}
		sess.State.Message = message
	})

	tracker.UpdateProgress(progress, message, stage)
}

func (s *PipelineService) isPaused(session *models.Session) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return session.State.Paused
}

// runAll executes the whole pipeline: ideas, a script per idea, then a
// LinkedIn post for the first script. The pause flag is checked only
// between script generations.
func (s *PipelineService) runAll(ctx context.Context, session *models.Session, apiCfg models.APIConfig, tracker *ProgressTracker) {
	s.setStatus(session, tracker, models.StageIdeas, 10)

	ideas, err := s.content.GenerateIdeas(ctx, apiCfg, session.Transcript, session.Instructions)
	if err != nil {
		s.failRun(session, tracker, err)
		return
	}

	s.mutate(session, func(sess *models.Session) {
		sess.Ideas = ideas
		if len(ideas) > 0 {
			sess.SelectedIdeaID = ideas[0].ID
		}
		sess.State.CompletedSteps.Ideas = true
	})

	s.setStatus(session, tracker, models.StageScripts, 40)

	var scripts []models.VideoScript
	for i, idea := range ideas {
		if s.isPaused(session) {
			break
		}

		script, err := s.content.GenerateScript(ctx, apiCfg, idea, session.Transcript, session.Instructions)
		if err != nil {
			s.failRun(session, tracker, err)
			return
		}

		scripts = append(scripts, script)
		s.mutate(session, func(sess *models.Session) {
			sess.Scripts = append(sess.Scripts, script)
			sess.State.CompletedSteps.Scripts = true
		})

		s.setStatus(session, tracker, models.StageScripts, 40+(i+1)*30/len(ideas))
	}

	if len(scripts) > 0 && !s.isPaused(session) {
		s.mutate(session, func(sess *models.Session) {
			sess.SelectedScriptID = scripts[0].ID
		})

		s.setStatus(session, tracker, models.StageLinkedIn, 80)

		post, err := s.content.GenerateLinkedInPost(ctx, apiCfg, scripts[0])
		if err != nil {
			s.failRun(session, tracker, err)
			return
		}

		s.mutate(session, func(sess *models.Session) {
			sess.LinkedInPosts = []models.LinkedInPost{post}
			sess.State.CompletedSteps.LinkedIn = true
		})

		s.setStatus(session, tracker, models.StageComplete, 100)
		tracker.Complete("Generation complete")
		return
	}

	if s.isPaused(session) {
		tracker.Complete("Paused")
		return
	}

	tracker.Complete("Generation complete")
}

func (s *PipelineService) failRun(session *models.Session, tracker *ProgressTracker, err error) {
	s.logger.Error("pipeline run failed", map[string]interface{}{
		"session_id": session.ID,
		"error":      err.Error(),
	})

	s.mutate(session, func(sess *models.Session) {
		sess.State.Message = err.Error()
	})

	tracker.Fail(err.Error())
}

// RunNextStep advances the session one checkpoint at a time. The first
// call arms the ideas step; each later call executes the current stage
// and stops at the next one. A non-empty stepPrompt is stored for the
// current stage before it executes.
func (s *PipelineService) RunNextStep(ctx context.Context, id string, apiCfg models.APIConfig, stepPrompt string) (*models.Session, error) {
	session, err := s.live(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	stage := session.State.Stage
	s.mu.RUnlock()

	if stepPrompt != "" {
		if err := s.setStepPrompt(session, stage, stepPrompt); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	stepPrompts := session.State.StepPrompts
	s.mu.RUnlock()

	switch stage {
	case models.StageIdle, models.StageComplete:
		s.mutate(session, func(sess *models.Session) {
			sess.State.Stage = models.StageIdeas
			sess.State.Progress = 0
			sess.State.Message = "Ready to generate ideas"
		})
		return s.snapshot(session), nil

	case models.StageIdeas:
		instructions := stepPrompts.Ideas
		if instructions == "" {
			instructions = session.Instructions
		}

		ideas, err := s.content.GenerateIdeas(ctx, apiCfg, session.Transcript, instructions)
		if err != nil {
			return nil, err
		}

		s.mutate(session, func(sess *models.Session) {
			sess.Ideas = ideas
			if len(ideas) > 0 {
				sess.SelectedIdeaID = ideas[0].ID
			}
			sess.State.CompletedSteps.Ideas = true
			sess.State.Stage = models.StageScripts
			sess.State.Progress = 100
			sess.State.Message = "Ideas ready, select one to continue"
		})
		return s.snapshot(session), nil

	case models.StageScripts:
		s.mu.RLock()
		idea, ok := session.IdeaByID(session.SelectedIdeaID)
		s.mu.RUnlock()
		if !ok {
			return nil, errors.NewSelectionError("Please select and finalize a content idea first")
		}

		stepInstructions := stepPrompts.Scripts
		if stepInstructions == "" {
			stepInstructions = session.Instructions
		}
		combined := fmt.Sprintf("Use this content idea as basis: %s\n%s\n\n%s", idea.Title, idea.Description, stepInstructions)

		script, err := s.content.GenerateScript(ctx, apiCfg, idea, session.Transcript, combined)
		if err != nil {
			return nil, err
		}

		s.mutate(session, func(sess *models.Session) {
			sess.Scripts = append(sess.Scripts, script)
			sess.SelectedScriptID = script.ID
			sess.State.CompletedSteps.Scripts = true
			sess.State.Stage = models.StageLinkedIn
			sess.State.Progress = 100
			sess.State.Message = "Script ready, select one to continue"
		})
		return s.snapshot(session), nil

	case models.StageLinkedIn:
		s.mu.RLock()
		script, ok := session.ScriptByID(session.SelectedScriptID)
		s.mu.RUnlock()
		if !ok {
			return nil, errors.NewSelectionError("Please select and finalize a video script first")
		}

		post, err := s.content.GenerateLinkedInPost(ctx, apiCfg, script)
		if err != nil {
			return nil, err
		}

		s.mutate(session, func(sess *models.Session) {
			sess.LinkedInPosts = append(sess.LinkedInPosts, post)
			sess.State.CompletedSteps.LinkedIn = true
			sess.State.Stage = models.StageIdle
			sess.State.Progress = 100
			sess.State.Message = "Generation complete"
		})
		return s.snapshot(session), nil
	}

	return nil, errors.NewValidationError(fmt.Sprintf("unknown pipeline stage: %s", stage), nil)
}

// SetStepPrompt stores the per-step instructions used by step mode.
func (s *PipelineService) SetStepPrompt(id string, stage models.PipelineStage, prompt string) error {
	session, err := s.live(id)
	if err != nil {
		return err
	}
	return s.setStepPrompt(session, stage, prompt)
}

func (s *PipelineService) setStepPrompt(session *models.Session, stage models.PipelineStage, prompt string) error {
	switch stage {
	case models.StageIdeas, models.StageScripts, models.StageLinkedIn:
	default:
		return errors.NewValidationError(fmt.Sprintf("no step prompt for stage: %s", stage), nil)
	}

	s.mutate(session, func(sess *models.Session) {
		switch stage {
		case models.StageIdeas:
			sess.State.StepPrompts.Ideas = prompt
		case models.StageScripts:
			sess.State.StepPrompts.Scripts = prompt
		case models.StageLinkedIn:
			sess.State.StepPrompts.LinkedIn = prompt
		}
	})
	return nil
}

// Pause sets the advisory pause flag. A running pipeline stops before
// the next script generation.
func (s *PipelineService) Pause(id string) (*models.Session, error) {
	session, err := s.live(id)
	if err != nil {
		return nil, err
	}

	s.mutate(session, func(sess *models.Session) {
		sess.State.Paused = true
	})
	return s.snapshot(session), nil
}

// Resume clears the pause flag.
func (s *PipelineService) Resume(id string) (*models.Session, error) {
	session, err := s.live(id)
	if err != nil {
		return nil, err
	}

	s.mutate(session, func(sess *models.Session) {
		sess.State.Paused = false
	})
	return s.snapshot(session), nil
}

// SelectIdea marks an idea selected. When a script already exists for
// it, that script is selected too, and a missing LinkedIn post is
// generated on the spot.
func (s *PipelineService) SelectIdea(ctx context.Context, id, ideaID string, apiCfg models.APIConfig) (*models.Session, error) {
	session, err := s.live(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	_, ok := session.IdeaByID(ideaID)
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("idea not found: %s", ideaID))
	}

	s.mutate(session, func(sess *models.Session) {
		sess.SelectedIdeaID = ideaID
	})

	s.mu.RLock()
	script, hasScript := session.ScriptForIdea(ideaID)
	s.mu.RUnlock()
	if !hasScript {
		return s.snapshot(session), nil
	}

	s.mutate(session, func(sess *models.Session) {
		sess.SelectedScriptID = script.ID
	})

	s.mu.RLock()
	_, hasPost := session.PostForScript(script.ID)
	s.mu.RUnlock()
	if hasPost {
		return s.snapshot(session), nil
	}

	post, err := s.content.GenerateLinkedInPost(ctx, apiCfg, script)
	if err != nil {
		return nil, err
	}

	s.mutate(session, func(sess *models.Session) {
		sess.LinkedInPosts = append(sess.LinkedInPosts, post)
		sess.State.CompletedSteps.LinkedIn = true
	})

	return s.snapshot(session), nil
}

// SelectScript marks a script selected.
func (s *PipelineService) SelectScript(id, scriptID string) (*models.Session, error) {
	session, err := s.live(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	_, ok := session.ScriptByID(scriptID)
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("script not found: %s", scriptID))
	}

	s.mutate(session, func(sess *models.Session) {
		sess.SelectedScriptID = scriptID
	})
	return s.snapshot(session), nil
}

// UpdateIdea replaces an idea after manual editing, keeping its id.
func (s *PipelineService) UpdateIdea(id string, updated models.ContentIdea) error {
	session, err := s.live(id)
	if err != nil {
		return err
	}

	s.mu.RLock()
	_, ok := session.IdeaByID(updated.ID)
	s.mu.RUnlock()
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("idea not found: %s", updated.ID))
	}

	s.mutate(session, func(sess *models.Session) {
		for i := range sess.Ideas {
			if sess.Ideas[i].ID == updated.ID {
				sess.Ideas[i] = updated
			}
		}
	})
	return nil
}

// UpdateScript replaces a script after manual editing, keeping its id.
func (s *PipelineService) UpdateScript(id string, updated models.VideoScript) error {
	session, err := s.live(id)
	if err != nil {
		return err
	}

	s.mu.RLock()
	_, ok := session.ScriptByID(updated.ID)
	s.mu.RUnlock()
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("script not found: %s", updated.ID))
	}

	s.mutate(session, func(sess *models.Session) {
		for i := range sess.Scripts {
			if sess.Scripts[i].ID == updated.ID {
				sess.Scripts[i] = updated
			}
		}
	})
	return nil
}

// RefineScript rewrites a script per the instructions, keeping its
// identity, and stores the result in place.
func (s *PipelineService) RefineScript(ctx context.Context, id, scriptID, instructions string, apiCfg models.APIConfig) (models.VideoScript, error) {
	session, err := s.live(id)
	if err != nil {
		return models.VideoScript{}, err
	}

	s.mu.RLock()
	script, ok := session.ScriptByID(scriptID)
	s.mu.RUnlock()
	if !ok {
		return models.VideoScript{}, errors.NewNotFoundError(fmt.Sprintf("script not found: %s", scriptID))
	}

	refined, err := s.content.RefineScript(ctx, apiCfg, script, instructions)
	if err != nil {
		return models.VideoScript{}, err
	}

	s.mutate(session, func(sess *models.Session) {
		for i := range sess.Scripts {
			if sess.Scripts[i].ID == refined.ID {
				sess.Scripts[i] = refined
			}
		}
	})

	return refined, nil
}

// RegenerateScript writes a brand new script for the idea, replacing
// any prior script for it and selecting the result.
func (s *PipelineService) RegenerateScript(ctx context.Context, id, ideaID, instructions string, apiCfg models.APIConfig) (models.VideoScript, error) {
	session, err := s.live(id)
	if err != nil {
		return models.VideoScript{}, err
	}

	s.mu.RLock()
	idea, ok := session.IdeaByID(ideaID)
	s.mu.RUnlock()
	if !ok {
		return models.VideoScript{}, errors.NewNotFoundError(fmt.Sprintf("idea not found: %s", ideaID))
	}

	script, err := s.content.RegenerateScript(ctx, apiCfg, idea, session.Transcript, instructions)
	if err != nil {
		return models.VideoScript{}, err
	}

	s.mutate(session, func(sess *models.Session) {
		replaced := false
		for i := range sess.Scripts {
			if sess.Scripts[i].IdeaID == ideaID {
				sess.Scripts[i] = script
				replaced = true
			}
		}
		if !replaced {
			sess.Scripts = append(sess.Scripts, script)
		}
		sess.SelectedScriptID = script.ID
	})

	return script, nil
}
