package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

var testLogger = slog.Default()

func TestUpload_Success(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret-token", testLogger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Upload(context.Background(), "health/2026/06/15/sample-x.json", []byte(`{"samples":[]}`)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if gotPath != "/health/2026/06/15/sample-x.json" {
		t.Errorf("path = %q, want /health/2026/06/15/sample-x.json", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("auth = %q, want bearer token", gotAuth)
	}
	if gotBody != `{"samples":[]}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestUpload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "t", testLogger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Upload(context.Background(), "health/x.json", []byte("{}")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestUpload_UnauthorizedIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "bad-token", testLogger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = c.Upload(context.Background(), "health/x.json", []byte("{}"))
	if err == nil {
		t.Fatal("Upload succeeded against a 401 backend")
	}
	var ue *Error
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %v, want *Error with status 401", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on auth failure)", got)
	}
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		e := &Error{StatusCode: tt.status}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "ftp://example.com"} {
		if _, err := NewClient(bad, "t", testLogger); err == nil {
			t.Errorf("NewClient(%q) accepted an invalid base URL", bad)
		}
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	good, err := NewClient(srv.URL, "good", testLogger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := good.Ping(context.Background()); err != nil {
		t.Errorf("Ping with a valid token: %v", err)
	}

	bad, err := NewClient(srv.URL, "bad", testLogger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := bad.Ping(context.Background()); err == nil {
		t.Error("Ping with a rejected token returned nil")
	}
}
