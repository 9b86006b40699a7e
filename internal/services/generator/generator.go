package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shortline/internal/config"
	"shortline/internal/logging"
	"shortline/internal/quota"
	"shortline/internal/services/llm"
	"shortline/internal/services/pexels"
	"shortline/internal/services/youtube"
	"shortline/internal/store"
)

// scriptDrafter is the slice of the LLM client the generator needs.
type scriptDrafter interface {
	DraftScript(ctx context.Context, topic, styleHint string) (llm.Script, error)
}

// footageSource is the slice of the Pexels client the generator needs.
type footageSource interface {
	Search(ctx context.Context, query string, perPage int) ([]pexels.Clip, error)
	Download(ctx context.Context, clip pexels.Clip, destDir string) (string, error)
}

// usageReporter records consumed quota units.
type usageReporter interface {
	ReportUsage(ctx context.Context, resource string, amount int) error
}

// Result is a finished artifact with the metadata the uploader needs.
type Result struct {
	ArtifactPath string
	Meta         youtube.Metadata
}

// Generator assembles a video for one channel end to end.
type Generator struct {
	drafter    scriptDrafter
	footage    footageSource
	usage      usageReporter
	logger     *slog.Logger
	stagingDir string
	workers    int
	runner     commandRunner
	titler     cases.Caser
}

// New builds a generator. The logger may be nil.
func New(drafter scriptDrafter, footage footageSource, usage usageReporter, cfg *config.Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Pexels.DownloadWorkers
	if workers <= 0 {
		workers = 2
	}
	return &Generator{
		drafter:    drafter,
		footage:    footage,
		usage:      usage,
		logger:     logger.With(logging.String(logging.FieldComponent, "generator")),
		stagingDir: cfg.Paths.StagingDir,
		workers:    workers,
		runner:     runCommand,
		titler:     cases.Title(language.English),
	}
}

// WithRunner swaps the command runner, used by tests to avoid real ffmpeg.
func (g *Generator) WithRunner(runner commandRunner) *Generator {
	g.runner = runner
	return g
}

// Generate produces the artifact for a job and returns its staging path.
// Quota usage is reported as calls complete, so a failure partway through
// still accounts for the requests already spent.
func (g *Generator) Generate(ctx context.Context, channel *store.Channel, job *store.VideoJob) (Result, error) {
	var empty Result

	script, err := g.drafter.DraftScript(ctx, channel.Theme, styleHint(channel))
	if reportErr := g.usage.ReportUsage(ctx, quota.ResourceLLM, 1); reportErr != nil {
		g.logger.Warn("failed to record llm usage", logging.Error(reportErr))
	}
	if err != nil {
		return empty, err
	}
	g.logger.Info("script drafted",
		logging.Int64(logging.FieldChannel, channel.ID),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("scenes", len(script.Scenes)))

	workDir := filepath.Join(g.stagingDir, fmt.Sprintf("job-%d-%s", job.ID, uuid.NewString()[:8]))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return empty, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	clipPaths, err := g.fetchClips(ctx, workDir, script.Scenes)
	if err != nil {
		return empty, err
	}

	artifact := filepath.Join(g.stagingDir, fmt.Sprintf("job-%d.mp4", job.ID))
	if err := render(ctx, g.runner, workDir, artifact, script.Scenes, clipPaths); err != nil {
		os.Remove(artifact)
		return empty, err
	}

	meta := youtube.Metadata{
		Title:       g.polishTitle(script.Title),
		Description: script.Description,
		Tags:        normalizeTags(script.Tags),
	}
	if err := WriteSidecar(artifact, meta); err != nil {
		RemoveArtifact(artifact)
		return empty, err
	}

	return Result{ArtifactPath: artifact, Meta: meta}, nil
}

// fetchClips searches and downloads one clip per scene on the worker pool.
// Every search counts against the footage quota whether or not it succeeds.
func (g *Generator) fetchClips(ctx context.Context, workDir string, scenes []llm.Scene) ([]string, error) {
	tasks := make([]downloadTask, len(scenes))
	for i, scene := range scenes {
		query := scene.Query
		tasks[i] = downloadTask{
			index: i,
			run: func(ctx context.Context) (string, error) {
				clips, err := g.footage.Search(ctx, query, 3)
				if reportErr := g.usage.ReportUsage(ctx, quota.ResourcePexels, 1); reportErr != nil {
					g.logger.Warn("failed to record footage usage", logging.Error(reportErr))
				}
				if err != nil {
					return "", err
				}
				if len(clips) == 0 {
					return "", fmt.Errorf("no portrait footage for query %q", query)
				}
				return g.footage.Download(ctx, clips[0], workDir)
			},
		}
	}
	return runDownloads(ctx, g.workers, tasks)
}

func (g *Generator) polishTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return title
	}
	// Only lift all-lowercase titles; models that already capitalize keep
	// their own casing.
	if title == strings.ToLower(title) {
		return g.titler.String(title)
	}
	return title
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == 10 {
			break
		}
	}
	return out
}

func styleHint(channel *store.Channel) string {
	parts := make([]string, 0, 2)
	if tone := strings.TrimSpace(channel.Tone); tone != "" {
		parts = append(parts, tone)
	}
	if style := strings.TrimSpace(channel.Style); style != "" {
		parts = append(parts, style)
	}
	return strings.Join(parts, ", ")
}
