// Package heartbeat maintains the liveness marker file the supervisor uses
// to decide whether the daemon is making progress. The marker holds the
// daemon PID and the timestamp of the last completed orchestration tick, so
// a wedged process with a live PID is still detectable.
package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileName is the marker file name under the data directory.
const FileName = "heartbeat"

// Marker is the decoded content of the liveness file.
type Marker struct {
	PID       int
	UpdatedAt time.Time
}

// Path returns the marker location for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Write stamps the marker with the current process and time. The file is
// replaced atomically so a reader never sees a partial write.
func Write(dataDir string, now time.Time) error {
	content := fmt.Sprintf("%d %s\n", os.Getpid(), now.UTC().Format(time.RFC3339))
	tmp := Path(dataDir) + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, Path(dataDir)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish heartbeat: %w", err)
	}
	return nil
}

// Read decodes the marker. A missing file is an error; the caller decides
// whether that means a first start or a dead daemon.
func Read(dataDir string) (Marker, error) {
	var marker Marker
	data, err := os.ReadFile(Path(dataDir))
	if err != nil {
		return marker, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return marker, fmt.Errorf("malformed heartbeat file: %q", strings.TrimSpace(string(data)))
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return marker, fmt.Errorf("malformed heartbeat pid: %w", err)
	}
	at, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return marker, fmt.Errorf("malformed heartbeat timestamp: %w", err)
	}
	marker.PID = pid
	marker.UpdatedAt = at
	return marker, nil
}

// IsFresh reports whether the marker was updated within maxAge of now.
func (m Marker) IsFresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(m.UpdatedAt) <= maxAge
}

// Remove deletes the marker, used on clean shutdown.
func Remove(dataDir string) error {
	err := os.Remove(Path(dataDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
