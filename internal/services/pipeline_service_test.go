// internal/services/pipeline_service_test.go
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pin4sf/loom-converter/internal/errors"
	"github.com/Pin4sf/loom-converter/internal/models"
	"github.com/Pin4sf/loom-converter/internal/storage"
)

// pipelineStubHandler answers each stage of the pipeline based on the
// prompt it receives.
func pipelineStubHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prompt := promptFromRequest(r)
		switch {
		case strings.Contains(prompt, "expert content strategist"):
			anthropicCompletion(w, `[
				{"title": "Idea One", "description": "the first angle"},
				{"title": "Idea Two", "description": "the second angle"}
			]`)
		case strings.Contains(prompt, "social media expert"):
			anthropicCompletion(w, "linkedin post body")
		case strings.Contains(prompt, "Refine this video script"):
			anthropicCompletion(w, "refined script body")
		case strings.Contains(prompt, "completely new blog-style video script"):
			anthropicCompletion(w, "regenerated script body")
		default:
			anthropicCompletion(w, "script body")
		}
	}
}

func newPipelineFixture(t *testing.T, handler http.HandlerFunc) (*PipelineService, *ProgressService, *storage.FileStorage) {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	llmSvc := newStubLLM(t, handler)
	progress := NewProgressService()
	svc := NewPipelineService(NewContentService(llmSvc), progress, fs)
	return svc, progress, fs
}

// seedSession edits the stored record under the service lock, standing
// in for earlier pipeline activity.
func seedSession(t *testing.T, svc *PipelineService, id string, fn func(*models.Session)) {
	t.Helper()

	session, err := svc.live(id)
	require.NoError(t, err)
	svc.mutate(session, fn)
}

func waitForTask(t *testing.T, progress *ProgressService, taskID string) *ProgressTracker {
	t.Helper()

	tracker, ok := progress.GetTracker(taskID)
	require.True(t, ok)

	select {
	case <-tracker.Done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline run did not finish in time")
	}
	return tracker
}

func TestCreateSession(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	session, err := svc.CreateSession("the transcript", "the instructions")

	require.NoError(t, err)
	assert.Regexp(t, `^session-[0-9a-f]{8}$`, session.ID)
	assert.Equal(t, "the transcript", session.Transcript)
	assert.Equal(t, models.StageIdle, session.State.Stage)

	got, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
}

func TestCreateSessionRequiresTranscript(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	_, err := svc.CreateSession("", "")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestGetSessionUnknown(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	_, err := svc.GetSession("session-missing1")

	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestGetSessionRecoversFromDisk(t *testing.T) {
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	llmSvc := newStubLLM(t, pipelineStubHandler())
	first := NewPipelineService(NewContentService(llmSvc), NewProgressService(), fs)

	session, err := first.CreateSession("persisted transcript", "")
	require.NoError(t, err)

	// A fresh service over the same storage simulates a restart.
	second := NewPipelineService(NewContentService(llmSvc), NewProgressService(), fs)
	loaded, err := second.GetSession(session.ID)

	require.NoError(t, err)
	assert.Equal(t, "persisted transcript", loaded.Transcript)
}

func TestGetSessionReturnsCopy(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	first, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	first.Transcript = "tampered"
	first.Ideas = append(first.Ideas, models.ContentIdea{ID: "idea-00000bad"})

	second, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "the transcript", second.Transcript)
	assert.Empty(t, second.Ideas)
}

// Readers keep polling and toggling the session while a full run is in
// flight; every returned copy must encode cleanly and the run must
// still finish.
func TestConcurrentAccessDuringRun(t *testing.T) {
	slowStub := pipelineStubHandler()
	svc, progress, _ := newPipelineFixture(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		slowStub(w, r)
	})

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	taskID, err := svc.StartRunAll(created.ID, anthropicConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				session, err := svc.GetSession(created.ID)
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := json.Marshal(session); err != nil {
					t.Error(err)
					return
				}
				if _, err := svc.Resume(created.ID); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	tracker := waitForTask(t, progress, taskID)
	assert.Equal(t, "completed", tracker.Status)
}

func TestStartRunAllFullPipeline(t *testing.T) {
	svc, progress, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	taskID, err := svc.StartRunAll(created.ID, anthropicConfig())
	require.NoError(t, err)
	assert.Regexp(t, `^task-[0-9a-f]{8}$`, taskID)

	tracker := waitForTask(t, progress, taskID)

	assert.Equal(t, "completed", tracker.Status)
	assert.Equal(t, 100, tracker.Progress)

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)

	require.Len(t, session.Ideas, 2)
	require.Len(t, session.Scripts, 2)
	require.Len(t, session.LinkedInPosts, 1)

	assert.Equal(t, session.Ideas[0].ID, session.SelectedIdeaID)
	assert.Equal(t, session.Scripts[0].ID, session.SelectedScriptID)
	assert.Equal(t, session.Scripts[0].ID, session.LinkedInPosts[0].ScriptID)

	assert.True(t, session.State.CompletedSteps.Ideas)
	assert.True(t, session.State.CompletedSteps.Scripts)
	assert.True(t, session.State.CompletedSteps.LinkedIn)
	assert.Equal(t, models.StageComplete, session.State.Stage)
	assert.Equal(t, 100, session.State.Progress)
}

func TestStartRunAllUnknownSession(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	_, err := svc.StartRunAll("session-missing1", anthropicConfig())

	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStartRunAllResetsPreviousArtifacts(t *testing.T) {
	svc, progress, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	taskID, err := svc.StartRunAll(created.ID, anthropicConfig())
	require.NoError(t, err)
	waitForTask(t, progress, taskID)

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	firstIdeaID := session.Ideas[0].ID

	taskID, err = svc.StartRunAll(created.ID, anthropicConfig())
	require.NoError(t, err)
	waitForTask(t, progress, taskID)

	session, err = svc.GetSession(created.ID)
	require.NoError(t, err)

	require.Len(t, session.Ideas, 2)
	assert.NotEqual(t, firstIdeaID, session.Ideas[0].ID)
	assert.Len(t, session.LinkedInPosts, 1)
}

func TestStartRunAllFailurePropagates(t *testing.T) {
	svc, progress, _ := newPipelineFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	})

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	taskID, err := svc.StartRunAll(created.ID, anthropicConfig())
	require.NoError(t, err)
	tracker := waitForTask(t, progress, taskID)

	assert.Equal(t, "failed", tracker.Status)
	assert.Contains(t, tracker.Message, "API authentication failed")

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	assert.Contains(t, session.State.Message, "API authentication failed")
}

func TestRunAllStopsWhenPaused(t *testing.T) {
	svc, progress, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	_, err = svc.Pause(created.ID)
	require.NoError(t, err)

	live, err := svc.live(created.ID)
	require.NoError(t, err)

	tracker := progress.CreateTracker("task-pause001")
	svc.runAll(context.Background(), live, anthropicConfig(), tracker)

	assert.Equal(t, "completed", tracker.Status)
	assert.Equal(t, "Paused", tracker.Message)

	// Ideas still ran; the pause takes effect before the first script.
	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	assert.Len(t, session.Ideas, 2)
	assert.Empty(t, session.Scripts)
	assert.Empty(t, session.LinkedInPosts)
}

func TestPauseResume(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	session, err := svc.Pause(created.ID)
	require.NoError(t, err)
	assert.True(t, session.State.Paused)

	session, err = svc.Resume(created.ID)
	require.NoError(t, err)
	assert.False(t, session.State.Paused)
}

func TestRunNextStepWalksTheStages(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())
	ctx := context.Background()
	cfg := anthropicConfig()

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	// First call arms the ideas step without generating anything.
	session, err := svc.RunNextStep(ctx, created.ID, cfg, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdeas, session.State.Stage)
	assert.Empty(t, session.Ideas)

	// Second call generates ideas and stops before scripts.
	session, err = svc.RunNextStep(ctx, created.ID, cfg, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageScripts, session.State.Stage)
	require.Len(t, session.Ideas, 2)
	assert.Equal(t, session.Ideas[0].ID, session.SelectedIdeaID)

	// Third call writes a script for the selected idea.
	session, err = svc.RunNextStep(ctx, created.ID, cfg, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageLinkedIn, session.State.Stage)
	require.Len(t, session.Scripts, 1)
	assert.Equal(t, session.Ideas[0].ID, session.Scripts[0].IdeaID)
	assert.Equal(t, session.Scripts[0].ID, session.SelectedScriptID)

	// Fourth call writes the post and returns to idle.
	session, err = svc.RunNextStep(ctx, created.ID, cfg, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, session.State.Stage)
	require.Len(t, session.LinkedInPosts, 1)
	assert.Equal(t, session.Scripts[0].ID, session.LinkedInPosts[0].ScriptID)
}

func TestRunNextStepRequiresIdeaSelection(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.State.Stage = models.StageScripts
	})

	_, err = svc.RunNextStep(context.Background(), created.ID, anthropicConfig(), "")

	require.Error(t, err)
	assert.True(t, errors.IsSelectionError(err))
	assert.Equal(t, "Please select and finalize a content idea first", err.Error())
}

func TestRunNextStepRequiresScriptSelection(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.State.Stage = models.StageLinkedIn
	})

	_, err = svc.RunNextStep(context.Background(), created.ID, anthropicConfig(), "")

	require.Error(t, err)
	assert.True(t, errors.IsSelectionError(err))
	assert.Equal(t, "Please select and finalize a video script first", err.Error())
}

func TestRunNextStepUsesStepPrompt(t *testing.T) {
	var sawPrompt string
	handler := func(w http.ResponseWriter, r *http.Request) {
		sawPrompt = promptFromRequest(r)
		anthropicCompletion(w, `[{"title": "Idea One", "description": "angle"}]`)
	}
	svc, _, _ := newPipelineFixture(t, handler)

	created, err := svc.CreateSession("the transcript", "session-wide instructions")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.State.Stage = models.StageIdeas
	})

	_, err = svc.RunNextStep(context.Background(), created.ID, anthropicConfig(), "step-only instructions")
	require.NoError(t, err)

	assert.Contains(t, sawPrompt, "step-only instructions")
	assert.NotContains(t, sawPrompt, "session-wide instructions")
}

func TestRunNextStepRejectsStepPromptWhenIdle(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	_, err = svc.RunNextStep(context.Background(), created.ID, anthropicConfig(), "too early")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestRunNextStepScriptCombinesIdeaAndInstructions(t *testing.T) {
	var scriptPrompt string
	handler := func(w http.ResponseWriter, r *http.Request) {
		prompt := promptFromRequest(r)
		if strings.Contains(prompt, "expert content strategist") {
			anthropicCompletion(w, `[{"title": "Idea One", "description": "the angle"}]`)
			return
		}
		scriptPrompt = prompt
		anthropicCompletion(w, "script body")
	}
	svc, _, _ := newPipelineFixture(t, handler)

	created, err := svc.CreateSession("the transcript", "base instructions")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.State.Stage = models.StageIdeas
	})

	ctx := context.Background()
	_, err = svc.RunNextStep(ctx, created.ID, anthropicConfig(), "")
	require.NoError(t, err)
	_, err = svc.RunNextStep(ctx, created.ID, anthropicConfig(), "")
	require.NoError(t, err)

	assert.Contains(t, scriptPrompt, "Use this content idea as basis: Idea One\nthe angle\n\nbase instructions")
}

func TestSetStepPromptRejectsUnknownStage(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	err = svc.SetStepPrompt(created.ID, models.StageComplete, "prompt")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestSelectIdeaBackfillsLinkedInPost(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Ideas = []models.ContentIdea{
			{ID: "idea-00000001", Title: "Idea One"},
			{ID: "idea-00000002", Title: "Idea Two"},
		}
		sess.Scripts = []models.VideoScript{
			{ID: "script-00000002", IdeaID: "idea-00000002", Title: "Idea Two", Script: "body"},
		}
	})

	session, err := svc.SelectIdea(context.Background(), created.ID, "idea-00000002", anthropicConfig())

	require.NoError(t, err)
	assert.Equal(t, "idea-00000002", session.SelectedIdeaID)
	assert.Equal(t, "script-00000002", session.SelectedScriptID)
	require.Len(t, session.LinkedInPosts, 1)
	assert.Equal(t, "script-00000002", session.LinkedInPosts[0].ScriptID)
}

func TestSelectIdeaWithoutScriptOnlySelects(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Ideas = []models.ContentIdea{{ID: "idea-00000001", Title: "Idea One"}}
	})

	session, err := svc.SelectIdea(context.Background(), created.ID, "idea-00000001", anthropicConfig())

	require.NoError(t, err)
	assert.Equal(t, "idea-00000001", session.SelectedIdeaID)
	assert.Empty(t, session.SelectedScriptID)
	assert.Empty(t, session.LinkedInPosts)
}

func TestSelectIdeaUnknown(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)

	_, err = svc.SelectIdea(context.Background(), created.ID, "idea-missing9", anthropicConfig())

	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSelectScript(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Scripts = []models.VideoScript{{ID: "script-00000001", Script: "body"}}
	})

	session, err := svc.SelectScript(created.ID, "script-00000001")
	require.NoError(t, err)
	assert.Equal(t, "script-00000001", session.SelectedScriptID)

	_, err = svc.SelectScript(created.ID, "script-missing9")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestUpdateIdeaInPlace(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Ideas = []models.ContentIdea{{ID: "idea-00000001", Title: "Old", Description: "old"}}
	})

	updated := models.ContentIdea{ID: "idea-00000001", Title: "New", Description: "new"}
	require.NoError(t, svc.UpdateIdea(created.ID, updated))

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", session.Ideas[0].Title)

	err = svc.UpdateIdea(created.ID, models.ContentIdea{ID: "idea-missing9"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestUpdateScriptInPlace(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Scripts = []models.VideoScript{{ID: "script-00000001", Script: "old body"}}
	})

	updated := models.VideoScript{ID: "script-00000001", Script: "edited body"}
	require.NoError(t, svc.UpdateScript(created.ID, updated))

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited body", session.Scripts[0].Script)
}

func TestRefineScriptInPlace(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Scripts = []models.VideoScript{
			{ID: "script-00000001", IdeaID: "idea-00000001", Title: "The Idea", Script: "original body"},
		}
	})

	refined, err := svc.RefineScript(context.Background(), created.ID, "script-00000001", "tighten it", anthropicConfig())

	require.NoError(t, err)
	assert.Equal(t, "script-00000001", refined.ID)
	assert.Equal(t, "refined script body", refined.Script)

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "refined script body", session.Scripts[0].Script)
}

func TestRegenerateScriptReplacesByIdea(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Ideas = []models.ContentIdea{{ID: "idea-00000001", Title: "Idea One"}}
		sess.Scripts = []models.VideoScript{
			{ID: "script-00000001", IdeaID: "idea-00000001", Title: "Idea One", Script: "stale body"},
		}
	})

	script, err := svc.RegenerateScript(context.Background(), created.ID, "idea-00000001", "new angle", anthropicConfig())

	require.NoError(t, err)
	assert.NotEqual(t, "script-00000001", script.ID)
	assert.Equal(t, "regenerated script body", script.Script)

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	require.Len(t, session.Scripts, 1)
	assert.Equal(t, script.ID, session.Scripts[0].ID)
	assert.Equal(t, script.ID, session.SelectedScriptID)
}

func TestRegenerateScriptAppendsWhenNoPriorScript(t *testing.T) {
	svc, _, _ := newPipelineFixture(t, pipelineStubHandler())

	created, err := svc.CreateSession("the transcript", "")
	require.NoError(t, err)
	seedSession(t, svc, created.ID, func(sess *models.Session) {
		sess.Ideas = []models.ContentIdea{{ID: "idea-00000001", Title: "Idea One"}}
	})

	script, err := svc.RegenerateScript(context.Background(), created.ID, "idea-00000001", "new angle", anthropicConfig())

	require.NoError(t, err)

	session, err := svc.GetSession(created.ID)
	require.NoError(t, err)
	require.Len(t, session.Scripts, 1)
	assert.Equal(t, script.ID, session.Scripts[0].ID)
}
