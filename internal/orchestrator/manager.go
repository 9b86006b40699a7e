package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"shortline/internal/config"
	"shortline/internal/heartbeat"
	"shortline/internal/logging"
	"shortline/internal/notifications"
	"shortline/internal/quota"
	"shortline/internal/recovery"
	"shortline/internal/retry"
	"shortline/internal/services/generator"
	"shortline/internal/services/youtube"
	"shortline/internal/store"
)

// videoGenerator is the slice of the generator the orchestrator needs.
type videoGenerator interface {
	Generate(ctx context.Context, channel *store.Channel, job *store.VideoJob) (generator.Result, error)
}

// videoUploader is the slice of the uploader the orchestrator needs.
type videoUploader interface {
	Upload(ctx context.Context, channelName, videoPath string, meta youtube.Metadata) (string, error)
	IsAuthenticated(channelName string) bool
	CostUnits() int
}

// localValidator reports environment problems before generation starts.
type localValidator func() []string

// Manager coordinates the job pipeline for all channels.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	ledger    *quota.Ledger
	recovery  *recovery.Manager
	generator videoGenerator
	uploader  videoUploader
	notifier  notifications.Service
	logger    *slog.Logger
	policy    retry.Policy
	validate  localValidator

	tickInterval    time.Duration
	stagingInterval time.Duration
	generateTimeout time.Duration
	uploadTimeout   time.Duration
	hbInterval      time.Duration
	hbTimeout       time.Duration

	// now is swapped out by tests.
	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs an orchestrator. The logger may be nil.
func NewManager(
	cfg *config.Config,
	st *store.Store,
	ledger *quota.Ledger,
	rec *recovery.Manager,
	gen videoGenerator,
	up videoUploader,
	notifier notifications.Service,
	validate localValidator,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Manager{
		cfg:             cfg,
		store:           st,
		ledger:          ledger,
		recovery:        rec,
		generator:       gen,
		uploader:        up,
		notifier:        notifier,
		validate:        validate,
		logger:          logger.With(logging.String(logging.FieldComponent, "orchestrator")),
		policy:          retry.FromConfig(cfg),
		tickInterval:    time.Duration(cfg.Workflow.TickInterval) * time.Second,
		stagingInterval: time.Duration(cfg.Workflow.StagingIntervalMins) * time.Minute,
		generateTimeout: time.Duration(cfg.Workflow.GenerateTimeout) * time.Second,
		uploadTimeout:   time.Duration(cfg.Workflow.UploadTimeout) * time.Second,
		hbInterval:      time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		hbTimeout:       time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
		now:             time.Now,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("orchestrator already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the current tick to
// finish its in-flight transition.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		m.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick performs one full pass: reclaim, schedule, generate, upload. The
// liveness marker is written even when every phase fails, because a tick
// that runs and fails is still a live process.
func (m *Manager) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	m.reclaimStale(ctx)
	m.scheduleDueChannels(ctx)

	aborted := m.processScheduled(ctx)
	if !aborted {
		m.processReady(ctx)
	}

	if err := heartbeat.Write(m.cfg.Paths.DataDir, m.now()); err != nil {
		m.logger.Error("failed to write liveness marker", logging.Error(err))
	}
}

func (m *Manager) reclaimStale(ctx context.Context) {
	if m.hbTimeout <= 0 {
		return
	}
	cutoff := m.now().Add(-m.hbTimeout)
	reclaimed, err := m.store.ReclaimStaleJobs(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("reclaim stale jobs failed, stuck jobs may remain", logging.Error(err))
		}
		return
	}
	if reclaimed > 0 {
		m.logger.Info("reclaimed jobs after missed heartbeats", logging.Int64("count", reclaimed))
	}
}

func (m *Manager) scheduleDueChannels(ctx context.Context) {
	channels, err := m.store.DueChannels(ctx, m.now())
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("failed to list due channels", logging.Error(err))
		}
		return
	}
	for _, channel := range channels {
		job, err := m.store.CreateJob(ctx, channel.ID)
		if errors.Is(err, store.ErrJobInFlight) {
			continue
		}
		if err != nil {
			m.logger.Error("failed to schedule job",
				logging.Int64(logging.FieldChannel, channel.ID),
				logging.Error(err))
			continue
		}
		m.logger.Info("job scheduled",
			logging.Int64(logging.FieldChannel, channel.ID),
			logging.Int64(logging.FieldJobID, job.ID))
	}
}
