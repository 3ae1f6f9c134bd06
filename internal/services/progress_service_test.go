// internal/services/progress_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pin4sf/loom-converter/internal/models"
)

func TestCreateTrackerIsIdempotent(t *testing.T) {
	svc := NewProgressService()

	first := svc.CreateTracker("task-00000001")
	second := svc.CreateTracker("task-00000001")

	assert.Same(t, first, second)
	assert.Equal(t, "running", first.Status)
	assert.Equal(t, "Initializing...", first.Message)
	assert.Equal(t, models.StageIdle, first.Stage)
}

func TestGetTracker(t *testing.T) {
	svc := NewProgressService()
	svc.CreateTracker("task-00000001")

	_, ok := svc.GetTracker("task-00000001")
	assert.True(t, ok)

	_, ok = svc.GetTracker("task-missing1")
	assert.False(t, ok)
}

func TestProgressNeverMovesBackwards(t *testing.T) {
	tracker := NewProgressService().CreateTracker("task-00000001")

	tracker.UpdateProgress(40, "scripts", models.StageScripts)
	tracker.UpdateProgress(10, "ideas again", models.StageIdeas)

	snapshot := tracker.Snapshot()
	assert.Equal(t, 40, snapshot.Progress)
	assert.Equal(t, "ideas again", snapshot.Message)
}

func TestSubscribeReceivesCurrentStateThenUpdates(t *testing.T) {
	tracker := NewProgressService().CreateTracker("task-00000001")
	tracker.UpdateProgress(10, "Processing ideas...", models.StageIdeas)

	ch := tracker.Subscribe()
	defer tracker.Unsubscribe(ch)

	initial := <-ch
	assert.Equal(t, 10, initial.Progress)
	assert.Equal(t, models.StageIdeas, initial.Stage)

	tracker.UpdateProgress(40, "Processing scripts...", models.StageScripts)

	select {
	case update := <-ch:
		assert.Equal(t, 40, update.Progress)
		assert.Equal(t, models.StageScripts, update.Stage)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestCompleteClosesDone(t *testing.T) {
	tracker := NewProgressService().CreateTracker("task-00000001")

	tracker.Complete("Generation complete")

	select {
	case <-tracker.Done:
	default:
		t.Fatal("done channel not closed")
	}

	snapshot := tracker.Snapshot()
	assert.Equal(t, 100, snapshot.Progress)
	assert.Equal(t, "completed", snapshot.Status)
	assert.Equal(t, models.StageComplete, snapshot.Stage)
}

func TestFailMarksTask(t *testing.T) {
	tracker := NewProgressService().CreateTracker("task-00000001")

	tracker.Fail("provider exploded")

	select {
	case <-tracker.Done:
	default:
		t.Fatal("done channel not closed")
	}

	snapshot := tracker.Snapshot()
	assert.Equal(t, "failed", snapshot.Status)
	assert.Equal(t, "Task failed: provider exploded", snapshot.Message)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	tracker := NewProgressService().CreateTracker("task-00000001")

	ch := tracker.Subscribe()
	<-ch
	tracker.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice must not panic.
	tracker.Unsubscribe(ch)
}

func TestCleanupCompletedTasks(t *testing.T) {
	svc := NewProgressService()

	done := svc.CreateTracker("task-00000001")
	done.Complete("done")
	running := svc.CreateTracker("task-00000002")
	require.NotNil(t, running)

	time.Sleep(5 * time.Millisecond)
	svc.CleanupCompletedTasks(time.Millisecond)

	_, ok := svc.GetTracker("task-00000001")
	assert.False(t, ok)
	_, ok = svc.GetTracker("task-00000002")
	assert.True(t, ok)
}

func TestStartCleanupPrunesFinishedTasks(t *testing.T) {
	svc := NewProgressService()

	tracker := svc.CreateTracker("task-00000003")
	tracker.Complete("done")

	svc.StartCleanup(5*time.Millisecond, time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := svc.GetTracker("task-00000003")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
