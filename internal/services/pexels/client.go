// Package pexels wraps the Pexels video search API used to source stock
// footage for rendered shorts. Errors are classified with the services
// markers at this boundary.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shortline/internal/quota"
	"shortline/internal/services"
)

const defaultBaseURL = "https://api.pexels.com"

// HTTPDoer describes the HTTP client used by the Pexels service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the settings required to talk to Pexels.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Clip is one downloadable stock video matching a search query.
type Clip struct {
	ID       int64
	URL      string
	Width    int
	Height   int
	Duration int
}

// Client searches and downloads portrait stock footage.
type Client struct {
	apiKey  string
	baseURL string
	client  HTTPDoer
}

// NewClient constructs a Pexels client from configuration.
func NewClient(cfg Config) *Client {
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewClientWithDoer constructs a client with an explicit HTTP doer for tests.
func NewClientWithDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  doer,
	}
}

type searchResponse struct {
	Videos []struct {
		ID         int64 `json:"id"`
		Duration   int   `json:"duration"`
		VideoFiles []struct {
			Link    string `json:"link"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
			Quality string `json:"quality"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search returns portrait clips for the query, best file per video.
func (c *Client) Search(ctx context.Context, query string, perPage int) ([]Clip, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(nil, "generate", "footage search", "query required", nil)
	}
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrAuth, "generate", "footage search", "api key required", nil)
	}
	if perPage <= 0 {
		perPage = 5
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", "portrait")
	endpoint := c.baseURL + "/videos/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generate", "footage search", "build request", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generate", "footage search", "request failed", err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "footage search"); err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generate", "footage search", "decode response", err)
	}

	clips := make([]Clip, 0, len(parsed.Videos))
	for _, video := range parsed.Videos {
		best := Clip{ID: video.ID, Duration: video.Duration}
		for _, file := range video.VideoFiles {
			// Prefer the tallest portrait rendition that stays under 4K.
			if file.Height <= file.Width || file.Height > 2560 {
				continue
			}
			if file.Height > best.Height {
				best.URL = file.Link
				best.Width = file.Width
				best.Height = file.Height
			}
		}
		if best.URL != "" {
			clips = append(clips, best)
		}
	}
	return clips, nil
}

// Download fetches a clip into destDir and returns the file path. The file
// is written under a temporary name and renamed once complete so partially
// downloaded clips never look usable.
func (c *Client) Download(ctx context.Context, clip Clip, destDir string) (string, error) {
	if clip.URL == "" {
		return "", services.Wrap(nil, "generate", "footage download", "clip has no url", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clip.URL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generate", "footage download", "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generate", "footage download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrTransient, "generate", "footage download",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	dest := filepath.Join(destDir, fmt.Sprintf("clip-%d.mp4", clip.ID))
	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generate", "footage download", "create file", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "generate", "footage download", "write file", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "generate", "footage download", "close file", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "generate", "footage download", "finalize file", err)
	}
	return dest, nil
}

// HealthCheck verifies the API key with a minimal search.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Search(ctx, "nature", 1)
	return err
}

func (c *Client) checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrAuth, "generate", op, "credentials rejected", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return services.WithResource(quota.ResourcePexels,
			services.Wrap(services.ErrQuota, "generate", op, "provider quota exceeded", nil))
	default:
		return services.Wrap(services.ErrTransient, "generate", op,
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
}
