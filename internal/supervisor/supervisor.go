package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"shortline/internal/config"
	"shortline/internal/heartbeat"
	"shortline/internal/logging"
	"shortline/internal/notifications"
	"shortline/internal/preflight"
)

const killGrace = 10 * time.Second

// Child is a handle to a spawned daemon process.
type Child interface {
	PID() int
	Signal(sig os.Signal) error
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
}

// StartFunc launches a new daemon process.
type StartFunc func(ctx context.Context) (Child, error)

// Supervisor restarts the daemon whenever its liveness marker goes stale or
// its PID disappears.
type Supervisor struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service

	start       StartFunc
	runChecks   func(ctx context.Context, cfg *config.Config) []preflight.Result
	poll        time.Duration
	retryChecks time.Duration
	staleAfter  time.Duration
	// startupGrace covers the window between spawning a child and its first
	// marker write.
	startupGrace     time.Duration
	backoffThreshold int
	backoffBase      time.Duration
	backoffMax       time.Duration
	now              func() time.Time

	mu        sync.Mutex
	child     Child
	startedAt time.Time
	failures  int
	// healthy is set once the current child has been observed alive, so the
	// failure counter resets exactly once per successful restart.
	healthy bool
}

// New constructs a supervisor. The start function may be nil, in which case
// the daemon binary is spawned from PATH.
func New(cfg *config.Config, notifier notifications.Service, start StartFunc, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if start == nil {
		start = StartDaemonBinary("")
	}
	sup := cfg.Supervisor
	return &Supervisor{
		cfg:              cfg,
		logger:           logger.With(logging.String(logging.FieldComponent, "supervisor")),
		notifier:         notifier,
		start:            start,
		runChecks:        preflight.RunAll,
		poll:             time.Duration(sup.PollInterval) * time.Second,
		retryChecks:      time.Duration(sup.ValidationRetrySecs) * time.Second,
		staleAfter:       time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
		startupGrace:     2 * time.Duration(cfg.Workflow.TickInterval) * time.Second,
		backoffThreshold: sup.BackoffThreshold,
		backoffBase:      time.Duration(sup.BackoffBaseSeconds) * time.Second,
		backoffMax:       time.Duration(sup.BackoffMaxSeconds) * time.Second,
		now:              time.Now,
	}
}

// Run supervises until ctx is cancelled. It never returns on child failure.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor started",
		logging.Duration("poll", s.poll),
		logging.Int("backoff_threshold", s.backoffThreshold))

	restartPending := false
	for ctx.Err() == nil {
		if !restartPending && s.IsChildAlive() {
			s.markHealthy()
			if !sleepCtx(ctx, s.poll) {
				break
			}
			continue
		}

		if !restartPending {
			restartPending = true
			s.noteFailure()
		}

		results := s.runChecks(ctx, s.cfg)
		if !preflight.AllPassed(results) {
			s.logger.Warn("preflight failed, holding restart",
				logging.String("failed", strings.Join(preflight.FailedNames(results), ", ")))
			if !sleepCtx(ctx, s.retryChecks) {
				break
			}
			continue
		}

		if delay := s.backoffDelay(); delay > 0 {
			s.logger.Info("backing off before restart",
				logging.Duration("delay", delay),
				logging.Int("consecutive_failures", s.failureCount()))
			if !sleepCtx(ctx, delay) {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		child, err := s.start(ctx)
		if err != nil {
			s.logger.Error("failed to start daemon", logging.Error(err))
			s.noteFailure()
			if !sleepCtx(ctx, s.retryChecks) {
				break
			}
			continue
		}
		s.adopt(child)
		restartPending = false
		s.logger.Info("daemon started", logging.Int("pid", child.PID()))
		if err := s.notifier.NotifyDaemonRestarted(ctx, s.failureCount()); err != nil {
			s.logger.Warn("restart notification failed", logging.Error(err))
		}
		if !sleepCtx(ctx, s.poll) {
			break
		}
	}

	s.shutdownChild()
	s.logger.Info("supervisor stopped")
	return nil
}

// IsChildAlive reports whether the daemon looks healthy: the spawned process
// has not exited, and the liveness marker names a running PID with a fresh
// timestamp. A child inside its startup grace window counts as alive before
// its first marker write.
func (s *Supervisor) IsChildAlive() bool {
	s.mu.Lock()
	child := s.child
	s.mu.Unlock()

	if child != nil {
		select {
		case <-child.Done():
			return false
		default:
		}
	}

	marker, err := heartbeat.Read(s.cfg.Paths.DataDir)
	if err != nil {
		return child != nil && s.withinGrace()
	}
	if !marker.IsFresh(s.now(), s.staleAfter) {
		if child != nil && s.withinGrace() {
			return true
		}
		return false
	}
	return unix.Kill(marker.PID, 0) == nil
}

func (s *Supervisor) withinGrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.startedAt) < s.startupGrace
}

func (s *Supervisor) adopt(child Child) {
	s.mu.Lock()
	s.child = child
	s.startedAt = s.now()
	s.healthy = false
	s.mu.Unlock()
}

func (s *Supervisor) markHealthy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthy {
		s.healthy = true
		s.failures = 0
	}
}

func (s *Supervisor) noteFailure() {
	s.mu.Lock()
	s.failures++
	count := s.failures
	s.mu.Unlock()
	s.logger.Warn("daemon down", logging.Int("consecutive_failures", count))
}

func (s *Supervisor) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Supervisor) backoffDelay() time.Duration {
	count := s.failureCount()
	if count <= s.backoffThreshold {
		return 0
	}
	delay := s.backoffBase
	for i := s.backoffThreshold + 1; i < count; i++ {
		delay *= 2
		if delay >= s.backoffMax {
			return s.backoffMax
		}
	}
	if delay > s.backoffMax {
		delay = s.backoffMax
	}
	return delay
}

// shutdownChild asks the daemon to exit and escalates to SIGKILL if it does
// not within the grace period.
func (s *Supervisor) shutdownChild() {
	s.mu.Lock()
	child := s.child
	s.child = nil
	s.mu.Unlock()
	if child == nil {
		return
	}

	if err := child.Signal(unix.SIGTERM); err != nil {
		return
	}
	select {
	case <-child.Done():
		return
	case <-time.After(killGrace):
	}
	_ = child.Signal(unix.SIGKILL)
	<-child.Done()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type execChild struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (c *execChild) PID() int { return c.cmd.Process.Pid }

func (c *execChild) Signal(sig os.Signal) error { return c.cmd.Process.Signal(sig) }

func (c *execChild) Done() <-chan struct{} { return c.done }

// StartDaemonBinary spawns the shortlined binary from PATH, passing the
// supervisor's config location through the environment.
func StartDaemonBinary(configPath string) StartFunc {
	return func(ctx context.Context) (Child, error) {
		path, err := exec.LookPath("shortlined")
		if err != nil {
			return nil, errors.New("shortlined binary not found in PATH")
		}
		cmd := exec.Command(path)
		cmd.Env = os.Environ()
		if configPath != "" {
			cmd.Env = append(cmd.Env, "SHORTLINE_CONFIG="+configPath)
		}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		child := &execChild{cmd: cmd, done: make(chan struct{})}
		go func() {
			_ = cmd.Wait()
			close(child.done)
		}()
		return child, nil
	}
}
