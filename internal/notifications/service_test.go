package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shortline/internal/config"
	"shortline/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyVideoPosted(context.Background(), "mychannel", "Title", "url"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "video posted",
			send: func(svc notifications.Service) error {
				return svc.NotifyVideoPosted(context.Background(), "oceanfacts", "Deep Sea Giants", "https://youtu.be/abc")
			},
			expectTitle:   "Shortline - Video Posted",
			expectMessage: "Posted for oceanfacts: Deep Sea Giants\nhttps://youtu.be/abc",
			expectTags:    "shortline,posted,oceanfacts",
		},
		{
			name: "channel paused",
			send: func(svc notifications.Service) error {
				return svc.NotifyChannelPaused(context.Background(), "oceanfacts", "auth failure")
			},
			expectTitle:    "Shortline - Channel Paused",
			expectMessage:  "Channel oceanfacts paused: auth failure",
			expectTags:     "shortline,paused,oceanfacts",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("render failed"), "generation")
			},
			expectTitle:    "Shortline - Error",
			expectMessage:  "Error in generation: render failed",
			expectTags:     "shortline,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.VideoPosted = false
	cfg.Notifications.QuotaExhausted = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyVideoPosted(context.Background(), "c", "t", "u"); err != nil {
		t.Fatalf("disabled event returned error: %v", err)
	}
	if err := svc.NotifyQuotaExhausted(context.Background(), "youtube", time.Now()); err != nil {
		t.Fatalf("disabled event returned error: %v", err)
	}
}

func TestNtfyServiceDeduplicatesRepeats(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 300

	svc := notifications.NewService(&cfg)
	for i := 0; i < 3; i++ {
		if err := svc.NotifyChannelPaused(context.Background(), "oceanfacts", "auth failure"); err != nil {
			t.Fatalf("notification returned error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 delivery inside the dedup window, got %d", got)
	}
}
