package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/adityak74/weatherweave/internal/core/ports"
)

const (
	maxRuns      = 200  // ring buffer size
	maxErrorText = 2000 // truncate error text at 2KB
)

// RunJournal records pipeline runs and their stages.
// Thread-safe. Operates as a ring buffer of recent runs.
type RunJournal struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	eventBus *EventBus
	repo     ports.RunRepository // optional; if non-nil, completed runs are persisted
	now      Clock

	runs     map[domain.RunID]*domain.Run
	runOrder []domain.RunID // for eviction
	pending  sync.WaitGroup
}

// NewRunJournal creates a journal. eventBus and repo may be nil.
func NewRunJournal(logger *slog.Logger, eventBus *EventBus, repo ports.RunRepository) *RunJournal {
	return &RunJournal{
		logger:   logger,
		eventBus: eventBus,
		repo:     repo,
		now:      time.Now,
		runs:     make(map[domain.RunID]*domain.Run, maxRuns),
	}
}

// StartRun opens a new run record.
func (j *RunJournal) StartRun(trigger domain.RunTrigger, theme domain.Theme) domain.RunID {
	id := domain.RunID(uuid.New().String())
	run := &domain.Run{
		ID:        id,
		Trigger:   trigger,
		Status:    domain.RunStatusRunning,
		Theme:     theme,
		StartTime: j.now(),
	}

	j.mu.Lock()
	j.evictIfNeeded()
	j.runs[id] = run
	j.runOrder = append(j.runOrder, id)
	j.mu.Unlock()

	j.publish(id, EventTypeRunStart, map[string]interface{}{
		"run_id":  id,
		"trigger": trigger,
		"theme":   theme,
	})
	j.logger.Debug("run started", "run_id", string(id), "trigger", trigger)
	return id
}

// StartStage appends a running stage to the run.
func (j *RunJournal) StartStage(id domain.RunID, name domain.StageName) {
	j.mu.Lock()
	defer j.mu.Unlock()
	run, ok := j.runs[id]
	if !ok {
		return
	}
	run.Stages = append(run.Stages, domain.Stage{
		Name:      name,
		Status:    domain.RunStatusRunning,
		StartTime: j.now(),
	})
}

// EndStage finalizes the most recent stage with the given name.
func (j *RunJournal) EndStage(id domain.RunID, name domain.StageName, status domain.RunStatus, err error, attrs map[string]string) {
	j.mu.Lock()
	run, ok := j.runs[id]
	if !ok {
		j.mu.Unlock()
		return
	}

	var stage *domain.Stage
	for i := len(run.Stages) - 1; i >= 0; i-- {
		if run.Stages[i].Name == name {
			stage = &run.Stages[i]
			break
		}
	}
	if stage == nil {
		j.mu.Unlock()
		return
	}

	now := j.now()
	stage.Status = status
	stage.EndTime = &now
	stage.DurationMs = now.Sub(stage.StartTime).Milliseconds()
	stage.Attributes = attrs
	if err != nil {
		stage.Error = truncate(err.Error(), maxErrorText)
	}
	payload := map[string]interface{}{
		"run_id":      id,
		"stage":       name,
		"status":      status,
		"duration_ms": stage.DurationMs,
		"error":       stage.Error,
	}
	j.mu.Unlock()

	j.publish(id, EventTypeStage, payload)
}

// Annotate mutates run-level details (prompt, artifact, strategy).
func (j *RunJournal) Annotate(id domain.RunID, fn func(*domain.Run)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if run, ok := j.runs[id]; ok {
		fn(run)
	}
}

// EndRun finalizes a run and persists it in the background.
func (j *RunJournal) EndRun(id domain.RunID, status domain.RunStatus, err error) {
	j.mu.Lock()
	run, ok := j.runs[id]
	if !ok {
		j.mu.Unlock()
		return
	}

	now := j.now()
	run.Status = status
	run.EndTime = &now
	run.DurationMs = now.Sub(run.StartTime).Milliseconds()
	if err != nil {
		run.Error = truncate(err.Error(), maxErrorText)
	}

	snapshot := copyRun(run)
	j.mu.Unlock()

	j.publish(id, EventTypeRunEnd, map[string]interface{}{
		"run_id":      id,
		"status":      status,
		"artifact_id": snapshot.ArtifactID,
		"duration_ms": snapshot.DurationMs,
		"error":       snapshot.Error,
	})

	if j.repo == nil {
		return
	}
	// Persist asynchronously to avoid blocking callers
	j.pending.Add(1)
	go func() {
		defer j.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := j.repo.SaveRun(ctx, snapshot); err != nil {
			j.logger.Warn("failed to persist run", "run_id", id, "error", err)
		}
	}()
}

// Flush waits for in-flight persistence to finish.
func (j *RunJournal) Flush() {
	j.pending.Wait()
}

// ListRuns returns summaries of recent runs (newest first). When the
// in-memory buffer is empty it falls back to the repository.
func (j *RunJournal) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	j.mu.RLock()
	if limit <= 0 || limit > len(j.runOrder) {
		limit = len(j.runOrder)
	}
	result := make([]domain.RunSummary, 0, limit)
	for i := len(j.runOrder) - 1; i >= 0 && len(result) < limit; i-- {
		if run, ok := j.runs[j.runOrder[i]]; ok {
			result = append(result, domain.RunSummary{
				ID:         run.ID,
				Trigger:    run.Trigger,
				Status:     run.Status,
				ArtifactID: run.ArtifactID,
				StartTime:  run.StartTime,
				DurationMs: run.DurationMs,
			})
		}
	}
	j.mu.RUnlock()

	if len(result) == 0 && j.repo != nil {
		return j.repo.ListRuns(ctx, limit)
	}
	return result, nil
}

// GetRun returns a full run including stages.
func (j *RunJournal) GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	j.mu.RLock()
	run, ok := j.runs[id]
	var cp *domain.Run
	if ok {
		cp = copyRun(run)
	}
	j.mu.RUnlock()

	if ok {
		return cp, nil
	}
	if j.repo != nil {
		return j.repo.GetRun(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
}

// --- Internal helpers ---

func (j *RunJournal) evictIfNeeded() {
	for len(j.runOrder) >= maxRuns {
		oldID := j.runOrder[0]
		j.runOrder = j.runOrder[1:]
		delete(j.runs, oldID)
	}
}

func (j *RunJournal) publish(id domain.RunID, eventType EventType, data map[string]interface{}) {
	if j.eventBus == nil {
		return
	}

	payload, _ := json.Marshal(data)
	j.eventBus.Publish(Event{
		RunID:     string(id),
		Type:      eventType,
		Data:      string(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}

func copyRun(r *domain.Run) *domain.Run {
	cp := *r
	cp.Stages = make([]domain.Stage, len(r.Stages))
	copy(cp.Stages, r.Stages)
	return &cp
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary; a split rune is invalid UTF-8 and the
	// run store rejects it.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "...[truncated]"
}
