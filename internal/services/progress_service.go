// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/Pin4sf/loom-converter/internal/models"
)

// ProgressUpdate is a single pipeline progress event
type ProgressUpdate struct {
	Progress int                  `json:"progress"` // 0-100
	Message  string               `json:"message"`
	Status   string               `json:"status"` // running, completed, failed
	Stage    models.PipelineStage `json:"stage,omitempty"`
}

// ProgressTracker tracks one long-running pipeline task and fans
// updates out to subscribers.
type ProgressTracker struct {
	TaskID      string
	Progress    int
	Message     string
	Status      string
	Stage       models.PipelineStage
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService manages all active trackers
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService creates the progress service
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker creates a tracker for taskID, returning the existing
// one if present.
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	tracker := &ProgressTracker{
		TaskID:      taskID,
		Progress:    0,
		Message:     "Initializing...",
		Status:      "running",
		Stage:       models.StageIdle,
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker returns the tracker for taskID
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// UpdateProgress advances the task, never moving backwards.
func (t *ProgressTracker) UpdateProgress(progress int, message string, stage models.PipelineStage) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	if stage != "" {
		t.Stage = stage
	}
	t.UpdateTime = time.Now()

	t.broadcast(ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
		Stage:    t.Stage,
	})
}

// Complete marks the task finished
func (t *ProgressTracker) Complete(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Progress = 100
	if message != "" {
		t.Message = message
	} else {
		t.Message = "Task completed"
	}
	t.Status = "completed"
	t.Stage = models.StageComplete
	t.UpdateTime = time.Now()

	t.broadcast(ProgressUpdate{
		Progress: 100,
		Message:  t.Message,
		Status:   "completed",
		Stage:    t.Stage,
	})

	close(t.Done)
}

// Fail marks the task failed
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Message = fmt.Sprintf("Task failed: %s", errorMsg)
	t.Status = "failed"
	t.UpdateTime = time.Now()

	t.broadcast(ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   "failed",
		Stage:    t.Stage,
	})

	close(t.Done)
}

// broadcast sends an update to every subscriber without blocking.
// Caller holds the mutex.
func (t *ProgressTracker) broadcast(update ProgressUpdate) {
	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Snapshot returns the current state as a single update
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
		Stage:    t.Stage,
	}
}

// Subscribe registers a channel that immediately receives the current
// state and then every subsequent update.
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.Subscribers[subscriber] = true

	subscriber <- ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
		Stage:    t.Stage,
	}

	return subscriber
}

// Unsubscribe removes and closes a subscriber channel
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.Subscribers[subscriber]; ok {
		delete(t.Subscribers, subscriber)
		close(subscriber)
	}
}

// CleanupCompletedTasks drops finished trackers older than maxAge
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		isCompleted := tracker.Status == "completed" || tracker.Status == "failed"
		isOld := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if isCompleted && isOld {
			delete(s.trackers, id)
		}
	}
}

// StartCleanup prunes finished trackers on an interval so the tracker
// map does not grow for the lifetime of the server.
func (s *ProgressService) StartCleanup(interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.CleanupCompletedTasks(maxAge)
		}
	}()
}
