package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(config.Notifications{})
	if err := svc.NotifyRunCompleted(context.Background(), "Inception", 1, 2, 0, 0); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsRunSummary(t *testing.T) {
	var gotTitle, gotTags, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := notifications.NewService(config.Notifications{NtfyTopic: server.URL})
	if err := svc.NotifyRunCompleted(context.Background(), "Inception", 3, 1, 2, 0); err != nil {
		t.Fatalf("NotifyRunCompleted failed: %v", err)
	}

	if gotTitle != "Curator - Run Complete" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if gotTags != "curator,run,completed" {
		t.Fatalf("unexpected tags %q", gotTags)
	}
	want := `Collection updated from "Inception": +3 / -1, 2 evicted`
	if gotBody != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", gotBody, want)
	}
}

func TestNtfyServiceEscalatesErrors(t *testing.T) {
	var gotPriority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPriority = r.Header.Get("Priority")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := notifications.NewService(config.Notifications{NtfyTopic: server.URL})
	if err := svc.NotifyError(context.Background(), errors.New("plex unreachable"), "sync"); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}
	if gotPriority != "high" {
		t.Fatalf("expected high priority, got %q", gotPriority)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	svc := notifications.NewService(config.Notifications{NtfyTopic: server.URL})
	err := svc.NotifyRefreshCompleted(context.Background(), 10, 0, time.Minute)
	if err == nil {
		t.Fatal("expected error from 403 response")
	}
}
