package generator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"shortline/internal/services"
	"shortline/internal/services/llm"
)

// commandRunner executes an external command. Tests swap it for a recorder.
type commandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, tailLines(stderr.String(), 5))
	}
	return nil
}

// render trims each downloaded clip to its scene length, normalizes it to a
// 1080x1920 portrait frame, and concatenates the segments into the final
// artifact. All intermediate files live in workDir and are removed by the
// caller.
func render(ctx context.Context, runner commandRunner, workDir, outputPath string, scenes []llm.Scene, clipPaths []string) error {
	if len(scenes) != len(clipPaths) {
		return services.Wrap(nil, "generate", "render", "scene and clip counts differ", nil)
	}

	segments := make([]string, len(scenes))
	for i, scene := range scenes {
		seconds := scene.Seconds
		if seconds <= 0 {
			seconds = 6
		}
		segment := filepath.Join(workDir, fmt.Sprintf("segment-%02d.mp4", i))
		args := []string{
			"-y",
			"-i", clipPaths[i],
			"-t", strconv.Itoa(seconds),
			"-vf", "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,setsar=1",
			"-r", "30",
			"-an",
			"-c:v", "libx264",
			"-preset", "veryfast",
			segment,
		}
		if err := runner(ctx, "ffmpeg", args...); err != nil {
			return services.Wrap(services.ErrTransient, "generate", "render segment", fmt.Sprintf("scene %d", i), err)
		}
		segments[i] = segment
	}

	listPath := filepath.Join(workDir, "concat.txt")
	var list strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&list, "file '%s'\n", segment)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render", "write concat list", err)
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	if err := runner(ctx, "ffmpeg", args...); err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render", "concatenate segments", err)
	}
	return nil
}

func tailLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
