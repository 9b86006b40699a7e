package generator

import (
	"encoding/json"
	"fmt"
	"os"

	"shortline/internal/services/youtube"
)

// Metadata sidecars live next to the artifact so a job that survives a
// daemon restart between generation and upload still knows what to post.

func sidecarPath(artifactPath string) string {
	return artifactPath + ".json"
}

// WriteSidecar persists upload metadata next to the artifact.
func WriteSidecar(artifactPath string, meta youtube.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata sidecar: %w", err)
	}
	if err := os.WriteFile(sidecarPath(artifactPath), data, 0o644); err != nil {
		return fmt.Errorf("write metadata sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads the upload metadata for a staged artifact.
func ReadSidecar(artifactPath string) (youtube.Metadata, error) {
	var meta youtube.Metadata
	data, err := os.ReadFile(sidecarPath(artifactPath))
	if err != nil {
		return meta, fmt.Errorf("read metadata sidecar: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse metadata sidecar: %w", err)
	}
	return meta, nil
}

// RemoveArtifact deletes a staged artifact and its sidecar. Missing files
// are not errors; cleanup is best effort after posting.
func RemoveArtifact(artifactPath string) {
	if artifactPath == "" {
		return
	}
	os.Remove(artifactPath)
	os.Remove(sidecarPath(artifactPath))
}
