package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"shortline/internal/quota"
	"shortline/internal/services"
)

// Config captures the uploader settings.
type Config struct {
	ClientSecretsPath string
	TokenDir          string
	CategoryID        string
	PrivacyStatus     string
	UploadCostUnits   int
}

// Metadata describes the video being published.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// Uploader publishes rendered videos to YouTube.
type Uploader struct {
	cfg Config

	// newService is swapped out by tests to avoid real API clients.
	newService func(ctx context.Context, channelName string) (*youtubeapi.Service, error)
}

// NewUploader constructs an uploader from configuration.
func NewUploader(cfg Config) *Uploader {
	u := &Uploader{cfg: cfg}
	u.newService = u.buildService
	return u
}

// CostUnits reports the quota units one upload consumes.
func (u *Uploader) CostUnits() int {
	if u.cfg.UploadCostUnits > 0 {
		return u.cfg.UploadCostUnits
	}
	return 1600
}

// IsAuthenticated reports whether a usable token exists for the channel.
func (u *Uploader) IsAuthenticated(channelName string) bool {
	_, err := loadToken(u.cfg.TokenDir, channelName)
	return err == nil
}

func (u *Uploader) buildService(ctx context.Context, channelName string) (*youtubeapi.Service, error) {
	oauthCfg, err := oauthConfig(u.cfg.ClientSecretsPath)
	if err != nil {
		return nil, err
	}
	token, err := loadToken(u.cfg.TokenDir, channelName)
	if err != nil {
		return nil, err
	}
	return youtubeapi.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, token)))
}

// Upload publishes the video file and returns its watch URL.
func (u *Uploader) Upload(ctx context.Context, channelName, videoPath string, meta Metadata) (string, error) {
	service, err := u.newService(ctx, channelName)
	if err != nil {
		return "", services.Wrap(services.ErrAuth, "upload", "build client", "credentials unusable", err)
	}

	file, err := os.Open(videoPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "open artifact", videoPath, err)
	}
	defer file.Close()

	video := &youtubeapi.Video{
		Snippet: &youtubeapi.VideoSnippet{
			Title:       truncate(meta.Title, 100),
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  u.cfg.CategoryID,
		},
		Status: &youtubeapi.VideoStatus{
			PrivacyStatus:           u.cfg.PrivacyStatus,
			SelfDeclaredMadeForKids: false,
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video).Media(file)
	inserted, err := call.Context(ctx).Do()
	if err != nil {
		return "", classifyAPIError("insert video", err)
	}
	if inserted == nil || inserted.Id == "" {
		return "", services.Wrap(services.ErrTransient, "upload", "insert video", "empty response id", nil)
	}
	return "https://www.youtube.com/watch?v=" + inserted.Id, nil
}

// classifyAPIError maps googleapi failures onto the recovery markers.
// 403 responses are inspected by reason because YouTube uses the same status
// for both quota exhaustion and revoked credentials.
func classifyAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrTransient, "upload", op, "request failed", err)
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized:
		return services.Wrap(services.ErrAuth, "upload", op, "credentials rejected", err)
	case apiErr.Code == http.StatusForbidden:
		if reason := apiReason(apiErr); isQuotaReason(reason) {
			return services.WithResource(quota.ResourceYouTube,
				services.Wrap(services.ErrQuota, "upload", op, "daily quota exceeded", err))
		}
		return services.Wrap(services.ErrAuth, "upload", op, "access forbidden", err)
	case apiErr.Code == http.StatusTooManyRequests:
		return services.WithResource(quota.ResourceYouTube,
			services.Wrap(services.ErrQuota, "upload", op, "rate limited", err))
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "duplicate"):
		return services.Wrap(services.ErrDuplicate, "upload", op, "duplicate video", err)
	case apiErr.Code >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "upload", op,
			fmt.Sprintf("http %d", apiErr.Code), err)
	default:
		return services.Wrap(services.ErrTransient, "upload", op,
			fmt.Sprintf("http %d", apiErr.Code), err)
	}
}

func apiReason(apiErr *googleapi.Error) string {
	for _, item := range apiErr.Errors {
		if item.Reason != "" {
			return item.Reason
		}
	}
	return ""
}

func isQuotaReason(reason string) bool {
	switch reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "uploadLimitExceeded":
		return true
	default:
		return false
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
