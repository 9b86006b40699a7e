package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"shortline/internal/config"
)

const userAgent = "Shortline/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyVideoPosted(ctx context.Context, channelName, title, url string) error
	NotifyChannelPaused(ctx context.Context, channelName, reason string) error
	NotifyQuotaExhausted(ctx context.Context, resource string, nextReset time.Time) error
	NotifyDaemonRestarted(ctx context.Context, consecutiveFailures int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dedup := time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled:  cfg.Notifications,
		dedup:    dedup,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  config.Notifications
	dedup    time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func (n *ntfyService) NotifyVideoPosted(ctx context.Context, channelName, title, url string) error {
	if !n.enabled.VideoPosted {
		return nil
	}
	channelName = strings.TrimSpace(channelName)
	message := fmt.Sprintf("Posted for %s: %s", channelName, strings.TrimSpace(title))
	if url = strings.TrimSpace(url); url != "" {
		message = fmt.Sprintf("%s\n%s", message, url)
	}
	data := payload{
		title:   "Shortline - Video Posted",
		message: message,
		tags:    []string{"shortline", "posted", channelName},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyChannelPaused(ctx context.Context, channelName, reason string) error {
	if !n.enabled.ChannelPaused {
		return nil
	}
	channelName = strings.TrimSpace(channelName)
	data := payload{
		title:    "Shortline - Channel Paused",
		message:  fmt.Sprintf("Channel %s paused: %s", channelName, strings.TrimSpace(reason)),
		tags:     []string{"shortline", "paused", channelName},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQuotaExhausted(ctx context.Context, resource string, nextReset time.Time) error {
	if !n.enabled.QuotaExhausted {
		return nil
	}
	resource = strings.TrimSpace(resource)
	message := fmt.Sprintf("Daily quota exhausted for %s", resource)
	if !nextReset.IsZero() {
		message = fmt.Sprintf("%s, resets %s", message, nextReset.Local().Format("Mon 15:04"))
	}
	data := payload{
		title:   "Shortline - Quota Exhausted",
		message: message,
		tags:    []string{"shortline", "quota", resource},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonRestarted(ctx context.Context, consecutiveFailures int) error {
	if !n.enabled.DaemonRestarts {
		return nil
	}
	message := "Daemon restarted"
	if consecutiveFailures > 1 {
		message = fmt.Sprintf("Daemon restarted (%d consecutive failures)", consecutiveFailures)
	}
	data := payload{
		title:    "Shortline - Daemon Restarted",
		message:  message,
		tags:     []string{"shortline", "supervisor", "restart"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.enabled.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Shortline - Error",
		message:  builder.String(),
		tags:     []string{"shortline", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Shortline - Test",
		message:  "Notification system test",
		tags:     []string{"shortline", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// shouldSend drops messages identical to one sent inside the dedup window.
func (n *ntfyService) shouldSend(message string) bool {
	if n.dedup <= 0 {
		return true
	}
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[message]; ok && now.Sub(last) < n.dedup {
		return false
	}
	n.lastSent[message] = now
	// Drop entries past the window so the map stays bounded.
	for key, at := range n.lastSent {
		if now.Sub(at) >= n.dedup {
			delete(n.lastSent, key)
		}
	}
	return true
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.shouldSend(data.message) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyVideoPosted(context.Context, string, string, string) error    { return nil }
func (noopService) NotifyChannelPaused(context.Context, string, string) error          { return nil }
func (noopService) NotifyQuotaExhausted(context.Context, string, time.Time) error      { return nil }
func (noopService) NotifyDaemonRestarted(context.Context, int) error                   { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
