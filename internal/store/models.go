package store

import (
	"strings"
	"time"
)

// JobState represents the lifecycle of a video job.
type JobState string

const (
	StateScheduled  JobState = "scheduled"
	StateValidating JobState = "validating"
	StateGenerating JobState = "generating"
	StateReady      JobState = "ready"
	StateUploading  JobState = "uploading"
	StatePosted     JobState = "posted"
	StateFailed     JobState = "failed"
	StateDeleted    JobState = "deleted"
)

var allStates = []JobState{
	StateScheduled,
	StateValidating,
	StateGenerating,
	StateReady,
	StateUploading,
	StatePosted,
	StateFailed,
	StateDeleted,
}

var stateSet = func() map[JobState]struct{} {
	set := make(map[JobState]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var terminalStates = map[JobState]struct{}{
	StatePosted:  {},
	StateDeleted: {},
}

var processingStates = map[JobState]struct{}{
	StateValidating: {},
	StateGenerating: {},
	StateUploading:  {},
}

// AllStates returns the ordered list of known job states.
func AllStates() []JobState {
	cp := make([]JobState, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known JobState.
func ParseState(value string) (JobState, bool) {
	normalized := JobState(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state ends the job lifecycle. FAILED counts:
// the job never re-enters the pipeline on its own and the channel schedules
// a fresh job on its next due cycle.
func (s JobState) IsTerminal() bool {
	if s == StateFailed {
		return true
	}
	_, ok := terminalStates[s]
	return ok
}

// IsProcessing reports whether a state reflects an in-flight stage.
func (s JobState) IsProcessing() bool {
	_, ok := processingStates[s]
	return ok
}

// nonTerminalStates are the states that block a channel from scheduling a
// fresh job.
func nonTerminalStates() []JobState {
	return []JobState{StateScheduled, StateValidating, StateGenerating, StateReady, StateUploading}
}

// PauseReason records why a channel is suspended.
type PauseReason string

const (
	PauseNone   PauseReason = "none"
	PauseQuota  PauseReason = "quota"
	PauseAuth   PauseReason = "auth"
	PauseManual PauseReason = "manual"
)

// ParsePauseReason converts a string into a known PauseReason.
func ParsePauseReason(value string) (PauseReason, bool) {
	switch PauseReason(strings.ToLower(strings.TrimSpace(value))) {
	case PauseNone:
		return PauseNone, true
	case PauseQuota:
		return PauseQuota, true
	case PauseAuth:
		return PauseAuth, true
	case PauseManual:
		return PauseManual, true
	default:
		return "", false
	}
}

// Channel is an independently scheduled content production unit.
type Channel struct {
	ID           int64
	Name         string
	Theme        string
	Tone         string
	Style        string
	PostInterval time.Duration
	IsActive     bool
	PausedReason PauseReason
	PausedAt     *time.Time
	NextPostAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Eligible reports whether the orchestrator may select this channel.
func (c Channel) Eligible() bool {
	return c.IsActive && c.PausedReason == PauseNone
}

// VideoJob is one scheduled production run for a channel.
type VideoJob struct {
	ID                int64
	ChannelID         int64
	State             JobState
	StagedArtifactRef string
	ErrorMessage      string
	ResultURL         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ReadyAt           *time.Time
	LastHeartbeat     *time.Time
}

// QuotaResource tracks the daily budget for one external API.
type QuotaResource struct {
	APIName     string
	Limit       int
	Used        int
	Remaining   int
	IsExhausted bool
	ExhaustedAt *time.Time
	NextResetAt time.Time
}

// LogEntry is one row of the append-only operator log feed.
type LogEntry struct {
	ID        int64
	ChannelID int64
	Level     string
	Category  string
	Message   string
	CreatedAt time.Time
}

// JobStats aggregates job counts per state.
type JobStats map[JobState]int
