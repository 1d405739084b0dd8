// Package update checks once, at startup, whether a newer release exists.
package update

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/logger"
)

// ErrNoRelease is returned when the releases page lists no tags.
var ErrNoRelease = errors.New("no release found")

const maxBody = 4 << 20

// Checker compares the newest published release tag to the running version.
type Checker struct {
	URL     string
	Current string
	Client  *http.Client
}

// NewChecker creates a Checker with its own HTTP client.
func NewChecker(releasesURL, current string, timeout time.Duration) *Checker {
	return &Checker{
		URL:     releasesURL,
		Current: current,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Run performs one check and sends at most one UpdateAvailable. Failures are
// logged and otherwise ignored.
func (c *Checker) Run(ctx context.Context, pub interface{ Send(bus.Message) }) {
	latest, err := c.Latest(ctx)
	if err != nil {
		logger.Warn("Update check failed", "url", c.URL, "error", err)
		return
	}
	if latest == c.Current {
		logger.Debug("Up to date", "version", c.Current)
		return
	}
	logger.Info("Update available", "current", c.Current, "latest", latest)
	pub.Send(bus.UpdateAvailable{Latest: latest})
}

// Latest fetches the newest release tag. Both the HTML releases page and the
// JSON releases API are understood.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "videoslim-update-check")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return parseReleasesJSON(body)
	}
	return parseReleasesHTML(body)
}

func parseReleasesJSON(body []byte) (string, error) {
	var releases []struct {
		TagName string `json:"tag_name"`
	}
	if err := json.Unmarshal(body, &releases); err != nil {
		return "", fmt.Errorf("parse releases: %w", err)
	}
	if len(releases) == 0 || releases[0].TagName == "" {
		return "", ErrNoRelease
	}
	return releases[0].TagName, nil
}

// parseReleasesHTML returns the first release tag linked from the page,
// which lists releases newest first.
func parseReleasesHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse releases page: %w", err)
	}

	var tag string
	doc.Find(`a[href*="/releases/tag/"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		_, rest, ok := strings.Cut(href, "/releases/tag/")
		if !ok {
			return true
		}
		rest, _, _ = strings.Cut(rest, "?")
		rest, _, _ = strings.Cut(rest, "#")
		if unescaped, err := url.PathUnescape(rest); err == nil {
			rest = unescaped
		}
		tag = strings.TrimSpace(rest)
		return tag == ""
	})

	if tag == "" {
		return "", ErrNoRelease
	}
	return tag, nil
}
