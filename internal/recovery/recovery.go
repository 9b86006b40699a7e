// Package recovery turns failures from the pipeline stages into explicit
// decisions. It never throws past its callers: classification always lands
// on a category, and the decision for an unrecognized error is the
// conservative one.
package recovery

import (
	"context"
	"errors"
	"log/slog"

	"shortline/internal/logging"
	"shortline/internal/services"
	"shortline/internal/store"
)

// Category is the failure class derived from an error chain.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryQuota      Category = "quota"
	CategoryDependency Category = "dependency"
	CategoryTransient  Category = "transient"
	CategoryDuplicate  Category = "duplicate"
	CategoryUnknown    Category = "unknown"
)

// Decision is what the orchestrator should do about a failure.
type Decision string

const (
	// DecisionRetryNow means the operation may be retried within the
	// current attempt budget.
	DecisionRetryNow Decision = "retry-now"
	// DecisionRetryLater means the channel stays active but the job fails
	// and the channel will come due again on its schedule.
	DecisionRetryLater Decision = "retry-later"
	// DecisionPauseChannel means the channel must stop producing work
	// until an operator or the quota reset intervenes.
	DecisionPauseChannel Decision = "pause-channel"
	// DecisionAbortTick means the failure is environmental and the rest of
	// the tick should be skipped rather than burn every channel on it.
	DecisionAbortTick Decision = "abort-tick"
)

// Record captures one handled failure for logging and the operator feed.
type Record struct {
	Category  Category
	Decision  Decision
	ChannelID int64
	Resource  string
	Detail    string
}

// Manager applies recovery policy. Pausing and ledger updates go through the
// store and quota ledger it was built with.
type Manager struct {
	store  *store.Store
	ledger exhauster
	logger *slog.Logger
}

// exhauster is the slice of the quota ledger recovery needs.
type exhauster interface {
	MarkExhausted(ctx context.Context, resource string) error
}

// NewManager builds a recovery manager. The logger may be nil.
func NewManager(st *store.Store, ledger exhauster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:  st,
		ledger: ledger,
		logger: logger.With(logging.String(logging.FieldComponent, "recovery")),
	}
}

// Classify maps an error chain onto a failure category. It checks the
// sentinel markers in priority order and falls back to unknown, which is
// handled like a transient failure minus the in-attempt retry.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, services.ErrAuth):
		return CategoryAuth
	case errors.Is(err, services.ErrQuota):
		return CategoryQuota
	case errors.Is(err, services.ErrDependency):
		return CategoryDependency
	case errors.Is(err, services.ErrDuplicate):
		return CategoryDuplicate
	case errors.Is(err, services.ErrTransient):
		return CategoryTransient
	default:
		return CategoryUnknown
	}
}

// Recover classifies err, applies the side effects its category demands, and
// returns the record describing what was decided. Side-effect failures are
// logged and folded into the record detail; they never mask the decision.
func (m *Manager) Recover(ctx context.Context, channelID int64, err error) Record {
	category := Classify(err)
	record := Record{
		Category:  category,
		ChannelID: channelID,
		Detail:    errDetail(err),
	}
	if resource, ok := services.Resource(err); ok {
		record.Resource = resource
	}

	switch category {
	case CategoryAuth:
		record.Decision = DecisionPauseChannel
		m.pause(ctx, channelID, store.PauseAuth)
	case CategoryQuota:
		record.Decision = DecisionPauseChannel
		if record.Resource != "" {
			if markErr := m.ledger.MarkExhausted(ctx, record.Resource); markErr != nil {
				m.logger.Error("failed to mark resource exhausted",
					logging.String(logging.FieldResource, record.Resource),
					logging.Error(markErr))
			}
		}
		m.pause(ctx, channelID, store.PauseQuota)
	case CategoryDependency:
		record.Decision = DecisionAbortTick
	case CategoryDuplicate:
		record.Decision = DecisionRetryLater
	case CategoryTransient:
		record.Decision = DecisionRetryNow
	default:
		record.Decision = DecisionRetryLater
	}

	m.logger.Warn("failure handled",
		logging.Int64(logging.FieldChannel, channelID),
		logging.String(logging.FieldCategory, string(record.Category)),
		logging.String(logging.FieldDecision, string(record.Decision)),
		logging.String("detail", record.Detail))
	return record
}

func (m *Manager) pause(ctx context.Context, channelID int64, reason store.PauseReason) {
	if channelID == 0 {
		return
	}
	if err := m.store.Pause(ctx, channelID, reason); err != nil {
		m.logger.Error("failed to pause channel",
			logging.Int64(logging.FieldChannel, channelID),
			logging.Error(err))
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
