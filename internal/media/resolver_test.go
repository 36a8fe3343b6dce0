package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockURLGuard はURLGuardのテスト用モック。
// httptestサーバーはループバックで起動するため、検証なしのクライアントを返す。
type mockURLGuard struct {
	validateErr error
	validated   []string
}

func (m *mockURLGuard) ValidateURL(rawURL string) error {
	m.validated = append(m.validated, rawURL)
	return m.validateErr
}

func (m *mockURLGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newAudioServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

// TestHTTPResolver_Resolve_RelativeRef は相対参照がベースURLから解決されることを検証する。
func TestHTTPResolver_Resolve_RelativeRef(t *testing.T) {
	var gotMethod, gotPath string
	ts := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "2048")
	})

	guard := &mockURLGuard{}
	r, err := NewHTTPResolver(ts.URL+"/audio/", guard, newTestLogger(), 5*time.Second, 0)
	if err != nil {
		t.Fatalf("NewHTTPResolver() error = %v", err)
	}

	media, err := r.Resolve(context.Background(), "rec-1.mp3")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if gotMethod != http.MethodHead {
		t.Errorf("method = %q, want HEAD", gotMethod)
	}
	if gotPath != "/audio/rec-1.mp3" {
		t.Errorf("path = %q, want /audio/rec-1.mp3", gotPath)
	}
	if media.URL != ts.URL+"/audio/rec-1.mp3" {
		t.Errorf("URL = %q", media.URL)
	}
	if media.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q, want audio/mpeg", media.ContentType)
	}
	if media.Size != 2048 {
		t.Errorf("Size = %d, want 2048", media.Size)
	}
	if len(guard.validated) != 1 {
		t.Errorf("ValidateURL calls = %d, want 1", len(guard.validated))
	}
}

// TestHTTPResolver_Resolve_AbsoluteRef は絶対URLの参照がそのまま使われることを検証する。
func TestHTTPResolver_Resolve_AbsoluteRef(t *testing.T) {
	ts := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg; codecs=opus")
	})

	r, _ := NewHTTPResolver("", &mockURLGuard{}, newTestLogger(), 5*time.Second, 0)
	media, err := r.Resolve(context.Background(), ts.URL+"/x.ogg")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if media.URL != ts.URL+"/x.ogg" {
		t.Errorf("URL = %q", media.URL)
	}
}

// TestHTTPResolver_Resolve_Failures は解決に失敗するケースを検証する。
func TestHTTPResolver_Resolve_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		length      string
		maxSize     int64
		wantMsg     string
	}{
		{"存在しない", http.StatusNotFound, "audio/mpeg", "", 0, "404"},
		{"音声ではない", http.StatusOK, "text/html; charset=utf-8", "", 0, "Content-Type"},
		{"Content-Typeなし", http.StatusOK, "", "", 0, "Content-Type"},
		{"サイズ超過", http.StatusOK, "audio/mpeg", "4096", 1024, "大きすぎ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				if tt.length != "" {
					w.Header().Set("Content-Length", tt.length)
				}
				w.WriteHeader(tt.status)
			})

			r, _ := NewHTTPResolver(ts.URL, &mockURLGuard{}, newTestLogger(), 5*time.Second, tt.maxSize)
			_, err := r.Resolve(context.Background(), "/a.mp3")
			if err == nil {
				t.Fatal("Resolve() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Resolve() error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

// TestHTTPResolver_Resolve_GuardRejects はSSRF検証で拒否された場合にリクエストしないことを検証する。
func TestHTTPResolver_Resolve_GuardRejects(t *testing.T) {
	called := false
	ts := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	guard := &mockURLGuard{validateErr: errors.New("blocked IP address")}
	r, _ := NewHTTPResolver(ts.URL, guard, newTestLogger(), 5*time.Second, 0)

	if _, err := r.Resolve(context.Background(), "a.mp3"); err == nil {
		t.Fatal("Resolve() error = nil, want error")
	}
	if called {
		t.Error("server should not be called when the guard rejects the URL")
	}
}

// TestHTTPResolver_Resolve_RelativeWithoutBase はベースURLなしで相対参照を解決できないことを検証する。
func TestHTTPResolver_Resolve_RelativeWithoutBase(t *testing.T) {
	r, _ := NewHTTPResolver("", &mockURLGuard{}, newTestLogger(), time.Second, 0)
	if _, err := r.Resolve(context.Background(), "a.mp3"); err == nil {
		t.Error("Resolve() error = nil, want error")
	}
}

// TestIsAudioContentType はContent-Typeの判定を検証する。
func TestIsAudioContentType(t *testing.T) {
	tests := map[string]bool{
		"audio/mpeg":             true,
		"audio/webm;codecs=opus": true,
		"application/ogg":        true,
		"video/mp4":              true,
		"text/plain":             false,
		"application/json":       false,
		"":                       false,
	}
	for ct, want := range tests {
		if got := isAudioContentType(ct); got != want {
			t.Errorf("isAudioContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
