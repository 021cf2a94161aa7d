package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"revoice/internal/config"
	"revoice/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunCompleted(context.Background(), "run-1", 10, 0, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, calls *[]capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		*calls = append(*calls, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsRunEvents(t *testing.T) {
	var calls []capturedRequest
	server := newCaptureServer(t, &calls)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	const runID = "0a1b2c3d-4e5f-6789-abcd-ef0123456789"

	tests := []struct {
		name           string
		send           func(context.Context) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run started",
			send: func(ctx context.Context) error {
				return svc.NotifyRunStarted(ctx, runID, 42, 3)
			},
			expectTitle:   "Revoice - Run Started",
			expectMessage: "Started run 0a1b2c3d: 42 segments across 3 speakers",
			expectTags:    "revoice,run,started",
		},
		{
			name: "run completed clean",
			send: func(ctx context.Context) error {
				return svc.NotifyRunCompleted(ctx, runID, 42, 0, 90*time.Second)
			},
			expectTitle:   "Revoice - Run Complete",
			expectMessage: "✅ Run 0a1b2c3d complete: 42 segments synthesized in 1m30s",
			expectTags:    "revoice,run,completed",
		},
		{
			name: "run completed with failures",
			send: func(ctx context.Context) error {
				return svc.NotifyRunCompleted(ctx, runID, 40, 2, 90*time.Second)
			},
			expectTitle:   "Revoice - Run Complete (with failures)",
			expectMessage: "Run 0a1b2c3d complete: 40 succeeded, 2 failed in 1m30s",
			expectTags:    "revoice,run,completed",
		},
		{
			name: "run failed",
			send: func(ctx context.Context) error {
				return svc.NotifyRunFailed(ctx, runID, errors.New("no worker could start"))
			},
			expectTitle:    "Revoice - Run Failed",
			expectMessage:  "❌ Run 0a1b2c3d failed: no worker could start",
			expectTags:     "revoice,run,failed",
			expectPriority: "high",
		},
		{
			name: "test notification",
			send: func(ctx context.Context) error {
				return svc.TestNotification(ctx)
			},
			expectTitle:    "Revoice - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "revoice,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := len(calls)
			if err := tc.send(context.Background()); err != nil {
				t.Fatalf("send: %v", err)
			}
			if len(calls) != before+1 {
				t.Fatalf("expected one request, got %d", len(calls)-before)
			}
			got := calls[len(calls)-1]
			if got.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Errorf("message = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if msg := err.Error(); !strings.Contains(msg, "429") || !strings.Contains(msg, "topic over quota") {
		t.Fatalf("unexpected error: %v", err)
	}
}
