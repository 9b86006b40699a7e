package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shortline/internal/config"
	"shortline/internal/deps"
	"shortline/internal/heartbeat"
	"shortline/internal/logging"
	"shortline/internal/quota"
	"shortline/internal/store"
)

const quotaMaintenanceInterval = time.Hour

// processor is the background tick loop the daemon supervises.
type processor interface {
	Start(ctx context.Context) error
	Stop()
}

// Daemon runs the orchestrator and quota maintenance under a single-instance
// lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	orch   processor
	ledger *quota.Ledger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is a point-in-time snapshot for the status command.
type Status struct {
	Running      bool
	Jobs         store.JobStats
	Quota        []*store.QuotaResource
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, ledger *quota.Ledger, orch processor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || ledger == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, ledger, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "shortlined.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    st,
		orch:     orch,
		ledger:   ledger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shortline daemon instance is already running")
	}

	d.logDependencySnapshot()
	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{"shortline.log"},
	})

	if err := d.ledger.Init(ctx, d.cfg); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("seed quota ledger: %w", err)
	}

	dctx, cancel := context.WithCancel(ctx)
	if err := d.orch.Start(dctx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.ledger.RunMaintenance(dctx, quotaMaintenanceInterval)
	}()

	d.running.Store(true)
	d.logger.Info("shortline daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing, drains the maintenance loop, and releases
// the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orch.Stop()
	d.wg.Wait()

	if err := heartbeat.Remove(d.cfg.Paths.DataDir); err != nil {
		d.logger.Warn("failed to remove liveness marker", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shortline daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether background processing is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon snapshot.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("job stats: %w", err)
	}
	resources, err := d.store.ListQuotaResources(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("quota resources: %w", err)
	}
	return Status{
		Running:      d.running.Load(),
		Jobs:         stats,
		Quota:        resources,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}, nil
}

func (d *Daemon) logDependencySnapshot() {
	for _, status := range deps.CheckBinaries(deps.Requirements()) {
		if status.Available {
			d.logger.Info("dependency available",
				logging.String("binary", status.Command),
				logging.String("path", status.Detail))
			continue
		}
		d.logger.Warn("dependency missing",
			logging.String("binary", status.Command),
			logging.Bool("optional", status.Optional))
	}
}
