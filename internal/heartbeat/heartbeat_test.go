package heartbeat

import (
	"os"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if err := Write(dir, now); err != nil {
		t.Fatalf("Write: %v", err)
	}

	marker, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if marker.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), marker.PID)
	}
	if !marker.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, marker.UpdatedAt)
	}
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	marker := Marker{UpdatedAt: now.Add(-30 * time.Second)}
	if !marker.IsFresh(now, time.Minute) {
		t.Fatal("expected marker within max age to be fresh")
	}
	if marker.IsFresh(now, 10*time.Second) {
		t.Fatal("expected stale marker to fail freshness")
	}
}

func TestReadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(dir); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestRemoveMissingIsNoError(t *testing.T) {
	if err := Remove(t.TempDir()); err != nil {
		t.Fatalf("Remove on missing marker: %v", err)
	}
}
