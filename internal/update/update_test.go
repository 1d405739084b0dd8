package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mainite/videoslim/internal/bus"
)

const releasesPage = `<!DOCTYPE html>
<html><body>
<nav><a href="/mainite/VideoSlim/releases">Releases</a></nav>
<section>
  <h2><a href="/mainite/VideoSlim/releases/tag/v2.1.0">VideoSlim v2.1.0</a></h2>
  <a href="/mainite/VideoSlim/releases/tag/v2.1.0#assets">Assets</a>
</section>
<section>
  <h2><a href="/mainite/VideoSlim/releases/tag/v2.0.0">VideoSlim v2.0.0</a></h2>
</section>
</body></html>`

func TestParseReleasesHTML(t *testing.T) {
	tag, err := parseReleasesHTML([]byte(releasesPage))
	if err != nil {
		t.Fatalf("parseReleasesHTML failed: %v", err)
	}
	if tag != "v2.1.0" {
		t.Errorf("expected v2.1.0, got %s", tag)
	}

	if _, err := parseReleasesHTML([]byte("<html><body>nothing</body></html>")); !errors.Is(err, ErrNoRelease) {
		t.Errorf("expected ErrNoRelease, got %v", err)
	}
}

func TestParseReleasesJSON(t *testing.T) {
	tag, err := parseReleasesJSON([]byte(`[{"tag_name": "v1.9"}, {"tag_name": "v1.8"}]`))
	if err != nil || tag != "v1.9" {
		t.Errorf("expected v1.9, got %q (%v)", tag, err)
	}
	if _, err := parseReleasesJSON([]byte(`[]`)); !errors.Is(err, ErrNoRelease) {
		t.Errorf("expected ErrNoRelease, got %v", err)
	}
	if _, err := parseReleasesJSON([]byte(`{`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		current     string
		want        int
	}{
		{"newer html", "text/html", releasesPage, http.StatusOK, "v2.0.0", 1},
		{"same html", "text/html; charset=utf-8", releasesPage, http.StatusOK, "v2.1.0", 0},
		{"newer json", "application/json", `[{"tag_name": "v3"}]`, http.StatusOK, "v2.0.0", 1},
		{"server error", "text/html", "", http.StatusInternalServerError, "v2.0.0", 0},
		{"no releases", "text/html", "<html></html>", http.StatusOK, "v2.0.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := bus.New()
			NewChecker(srv.URL, tt.current, 5*time.Second).Run(context.Background(), b)

			if b.Len() != tt.want {
				t.Fatalf("expected %d messages, got %d", tt.want, b.Len())
			}
			if tt.want == 1 {
				msg, _ := b.TryReceive()
				if _, ok := msg.(bus.UpdateAvailable); !ok {
					t.Errorf("expected UpdateAvailable, got %#v", msg)
				}
			}
		})
	}
}

func TestRunTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	b := bus.New()
	NewChecker(srv.URL, "v2.0.0", 50*time.Millisecond).Run(context.Background(), b)
	if b.Len() != 0 {
		t.Error("expected no message after timeout")
	}
}
