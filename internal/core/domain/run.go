package domain

import "time"

// RunID uniquely identifies one pipeline invocation.
type RunID string

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerManual   RunTrigger = "manual"
	TriggerSchedule RunTrigger = "schedule"
	TriggerWake     RunTrigger = "wake"
	TriggerAPI      RunTrigger = "api"
)

// RunStatus indicates completion state of a run or stage.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusOK        RunStatus = "ok"
	RunStatusStale     RunStatus = "stale" // weather stage served the last known snapshot
	RunStatusError     RunStatus = "error"
	RunStatusCancelled RunStatus = "cancelled"
)

// StageName names a pipeline step.
type StageName string

const (
	StageWeather   StageName = "weather"
	StagePrompt    StageName = "prompt"
	StageGenerate  StageName = "generate"
	StagePersist   StageName = "persist"
	StageApply     StageName = "apply"
	StageRetention StageName = "retention"
)

// Stage is a single step within a run.
type Stage struct {
	Name       StageName         `json:"name"`
	Status     RunStatus         `json:"status"`
	Error      string            `json:"error,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    *time.Time        `json:"end_time,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
}

// Run is the journal record of one pipeline invocation.
type Run struct {
	ID         RunID      `json:"id"`
	Trigger    RunTrigger `json:"trigger"`
	Status     RunStatus  `json:"status"`
	Theme      Theme      `json:"theme"`
	Prompt     string     `json:"prompt,omitempty"`
	ArtifactID ArtifactID `json:"artifact_id,omitempty"`
	Strategy   string     `json:"strategy,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Stages     []Stage    `json:"stages,omitempty"` // populated only on detail view
}

// RunSummary is a lightweight view for listing runs.
type RunSummary struct {
	ID         RunID      `json:"id"`
	Trigger    RunTrigger `json:"trigger"`
	Status     RunStatus  `json:"status"`
	ArtifactID ArtifactID `json:"artifact_id,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	DurationMs int64      `json:"duration_ms"`
}
