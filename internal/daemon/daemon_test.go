package daemon_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"shortline/internal/daemon"
	"shortline/internal/heartbeat"
	"shortline/internal/quota"
	"shortline/internal/testsupport"
)

type fakeProcessor struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakeProcessor) Start(ctx context.Context) error {
	f.starts.Add(1)
	return nil
}

func (f *fakeProcessor) Stop() { f.stops.Add(1) }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ledger := quota.New(st, cfg, nil)
	proc := &fakeProcessor{}

	d, err := daemon.New(cfg, st, ledger, proc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("status should report running")
	}
	if len(status.Quota) != 3 {
		t.Fatalf("expected 3 seeded quota rows, got %d", len(status.Quota))
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to stop")
	}
	if proc.starts.Load() != 1 || proc.stops.Load() != 1 {
		t.Fatalf("unexpected processor lifecycle: starts=%d stops=%d",
			proc.starts.Load(), proc.stops.Load())
	}
}

func TestDaemonStopRemovesLivenessMarker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ledger := quota.New(st, cfg, nil)

	d, err := daemon.New(cfg, st, ledger, &fakeProcessor{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := heartbeat.Write(cfg.Paths.DataDir, time.Now()); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	d.Stop()

	if _, err := os.Stat(heartbeat.Path(cfg.Paths.DataDir)); !os.IsNotExist(err) {
		t.Fatalf("expected marker removed, stat err=%v", err)
	}
}
