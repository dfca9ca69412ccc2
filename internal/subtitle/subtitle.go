// Package subtitle manages subtitle lists and sidecar subtitle files.
// Every list handed to the session layer starts with a synthetic "Off"
// entry, so index 0 always means "no subtitles".
package subtitle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"flixclusive/internal/httputil"
	"flixclusive/internal/media"
)

// Off is the synthetic entry prepended to every fetched subtitle list.
var Off = media.Subtitle{Label: "Off", Source: media.Embedded}

// maxSubtitleBytes caps sidecar downloads.
const maxSubtitleBytes = 10 * 1024 * 1024

// WithOff returns a new list with Off at index 0 followed by subs.
func WithOff(subs []media.Subtitle) []media.Subtitle {
	out := make([]media.Subtitle, 0, len(subs)+1)
	out = append(out, Off)
	return append(out, subs...)
}

// Real maps an index of an Off-prefixed list back into the fetched list.
// It returns false for index 0 and out-of-range indices.
func Real(subs []media.Subtitle, idx int) (media.Subtitle, bool) {
	if idx <= 0 || idx >= len(subs) {
		return media.Subtitle{}, false
	}
	return subs[idx], true
}

// Labels returns display labels for an Off-prefixed list.
func Labels(subs []media.Subtitle) []string {
	labels := make([]string, len(subs))
	for i, s := range subs {
		switch {
		case s.Label != "":
			labels[i] = s.Label
		case s.Language != "":
			labels[i] = s.Language
		default:
			labels[i] = fmt.Sprintf("Track %d", i)
		}
	}
	return labels
}

// TempDir manages a randomized temporary directory for subtitle files.
type TempDir struct {
	path   string
	client *http.Client
}

// NewTempDir creates a randomized temporary directory for subtitle files.
func NewTempDir() (*TempDir, error) {
	dir, err := os.MkdirTemp("", "flixclusive-subs-*")
	if err != nil {
		return nil, fmt.Errorf("creating subtitle temp dir: %w", err)
	}
	return &TempDir{path: dir, client: httputil.NewClient()}, nil
}

// Path returns the directory path.
func (t *TempDir) Path() string { return t.path }

// Cleanup removes the temporary directory and all contents.
func (t *TempDir) Cleanup() {
	if t.path != "" {
		os.RemoveAll(t.path)
	}
}

// Download fetches an external subtitle into the temp directory and returns
// the local path. Embedded subtitles have nothing to download.
func (t *TempDir) Download(ctx context.Context, sub media.Subtitle) (string, error) {
	if sub.Source == media.Embedded || sub.URL == "" {
		return "", fmt.Errorf("subtitle %q has no external file", sub.Label)
	}

	filename := "subtitle.vtt"
	if parts := strings.Split(sub.URL, "/"); len(parts) > 0 {
		last := parts[len(parts)-1]
		if idx := strings.Index(last, "?"); idx != -1 {
			last = last[:idx]
		}
		if last != "" {
			filename = httputil.SanitizeFilename(last)
		}
	}
	localPath, err := httputil.SafePath(t.path, filename)
	if err != nil {
		return "", fmt.Errorf("subtitle path: %w", err)
	}

	resp, err := httputil.Get(ctx, t.client, sub.URL)
	if err != nil {
		return "", fmt.Errorf("downloading subtitle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("subtitle download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("creating subtitle file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxSubtitleBytes)); err != nil {
		return "", fmt.Errorf("writing subtitle file: %w", err)
	}

	return localPath, nil
}
