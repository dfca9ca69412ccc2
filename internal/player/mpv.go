package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"flixclusive/internal/media"
)

const ipcConnectTimeout = 5 * time.Second

// MPV drives a long-lived mpv process over its JSON IPC socket.
// The IPC socket lives in a randomized temp dir to prevent symlink attacks.
type MPV struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	socketDir string
	ipc       *ipcClient
	exited    chan struct{}
	subtitles []media.Subtitle
}

// NewMPV creates an mpv engine. The process starts on the first Prepare.
func NewMPV() *MPV { return &MPV{} }

func (m *MPV) Name() string { return "mpv" }

func (m *MPV) Available() bool {
	_, err := exec.LookPath("mpv")
	return err == nil
}

func (m *MPV) start(ctx context.Context) error {
	socketDir, err := os.MkdirTemp("", "flixclusive-mpv-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for mpv socket: %w", err)
	}
	socketPath := filepath.Join(socketDir, "socket")

	args := []string{
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--input-ipc-server=" + socketPath,
		"--really-quiet",
	}
	cmd := exec.Command("mpv", args...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		os.RemoveAll(socketDir)
		return fmt.Errorf("starting mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		// mpv exits non-zero when the user quits mid-file; that is not an error here.
		cmd.Wait()
		close(exited)
	}()

	dialCtx, cancel := context.WithTimeout(ctx, ipcConnectTimeout)
	defer cancel()
	if err := m.attach(dialCtx, socketPath); err != nil {
		cmd.Process.Kill()
		os.RemoveAll(socketDir)
		return err
	}

	m.cmd = cmd
	m.socketDir = socketDir
	m.exited = exited
	log.Debug().Int("pid", cmd.Process.Pid).Str("socket", socketPath).Msg("mpv started")
	return nil
}

// attach connects to an mpv IPC socket that already exists.
func (m *MPV) attach(ctx context.Context, socketPath string) error {
	c, err := dialIPC(ctx, socketPath)
	if err != nil {
		return err
	}
	m.ipc = c
	return nil
}

func (m *MPV) client() (*ipcClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ipc == nil {
		return nil, ErrNotPrepared
	}
	if m.exited != nil {
		select {
		case <-m.exited:
			return nil, ErrClosed
		default:
		}
	}
	return m.ipc, nil
}

// Prepare loads req.URL, replacing the current file.
func (m *MPV) Prepare(ctx context.Context, req PrepareRequest) error {
	m.mu.Lock()
	if m.ipc == nil {
		if err := m.start(ctx); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.subtitles = req.Subtitles
	c := m.ipc
	m.mu.Unlock()

	// Per-file options set before loadfile apply to the next file.
	start := "none"
	if req.StartMs > 0 {
		start = fmt.Sprintf("+%.3f", float64(req.StartMs)/1000)
	}
	subFiles := []string{}
	for _, s := range req.Subtitles {
		if s.Source == media.External && s.URL != "" {
			subFiles = append(subFiles, s.URL)
		}
	}

	props := []struct {
		name  string
		value any
	}{
		{"start", start},
		{"force-media-title", req.Title},
		{"sub-files", subFiles},
		{"sub-delay", float64(req.SubtitleOffsetMs) / 1000},
		{"pause", req.Paused},
	}
	for _, p := range props {
		if err := c.setProperty(ctx, p.name, p.value); err != nil {
			return fmt.Errorf("setting mpv %s: %w", p.name, err)
		}
	}

	if _, err := c.command(ctx, "loadfile", req.URL, "replace"); err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}

	if req.SubtitleIndex > 0 {
		// Tracks appear once the file is open; a failed selection is retried
		// by the session on the next subtitle change.
		if err := m.waitLoaded(ctx, c); err == nil {
			if err := m.SelectSubtitle(ctx, req.SubtitleIndex); err != nil {
				log.Debug().Err(err).Msg("Initial subtitle selection failed")
			}
		}
	} else if err := c.setProperty(ctx, "sid", "no"); err != nil {
		log.Debug().Err(err).Msg("Disabling subtitles failed")
	}
	return nil
}

// waitLoaded polls until mpv reports a duration for the new file.
func (m *MPV) waitLoaded(ctx context.Context, c *ipcClient) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		var d float64
		err := c.getProperty(ctx, "duration", &d)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errPropertyUnavailable) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type mpvTrack struct {
	ID               int    `json:"id"`
	Type             string `json:"type"`
	Lang             string `json:"lang"`
	Title            string `json:"title"`
	External         bool   `json:"external"`
	ExternalFilename string `json:"external-filename"`
}

func (m *MPV) tracks(ctx context.Context, c *ipcClient) ([]mpvTrack, error) {
	var tracks []mpvTrack
	if err := c.getProperty(ctx, "track-list", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Status reads the playback properties the session polls.
func (m *MPV) Status(ctx context.Context) (Status, error) {
	c, err := m.client()
	if err != nil {
		return Status{}, err
	}

	var (
		st       Status
		pos, dur float64
	)
	optional := func(name string, dst any) error {
		if err := c.getProperty(ctx, name, dst); err != nil && !errors.Is(err, errPropertyUnavailable) {
			return fmt.Errorf("reading mpv %s: %w", name, err)
		}
		return nil
	}

	for _, p := range []struct {
		name string
		dst  any
	}{
		{"time-pos", &pos},
		{"duration", &dur},
		{"pause", &st.Paused},
		{"paused-for-cache", &st.Buffering},
		{"eof-reached", &st.Ended},
	} {
		if err := optional(p.name, p.dst); err != nil {
			return Status{}, err
		}
	}
	st.PositionMs = int64(pos * 1000)
	st.DurationMs = int64(dur * 1000)

	if tracks, err := m.tracks(ctx, c); err == nil {
		for _, t := range tracks {
			if t.Type == "audio" {
				st.AudioTracks = append(st.AudioTracks, media.AudioTrack{ID: t.ID, Language: t.Lang, Label: t.Title})
			}
		}
	}
	return st, nil
}

func (m *MPV) Seek(ctx context.Context, positionMs int64) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	_, err = c.command(ctx, "seek", float64(positionMs)/1000, "absolute")
	return err
}

func (m *MPV) SetPaused(ctx context.Context, paused bool) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	return c.setProperty(ctx, "pause", paused)
}

// SelectSubtitle maps an Off-prefixed index to mpv's subtitle track id.
func (m *MPV) SelectSubtitle(ctx context.Context, index int) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	if index <= 0 {
		return c.setProperty(ctx, "sid", "no")
	}

	m.mu.Lock()
	subs := m.subtitles
	m.mu.Unlock()
	if index >= len(subs) {
		return fmt.Errorf("subtitle index %d out of range", index)
	}
	want := subs[index]

	tracks, err := m.tracks(ctx, c)
	if err != nil {
		return fmt.Errorf("reading track list: %w", err)
	}
	if id, ok := matchSubtitleTrack(tracks, want); ok {
		return c.setProperty(ctx, "sid", id)
	}
	return fmt.Errorf("no mpv track for subtitle %q", want.Label)
}

func matchSubtitleTrack(tracks []mpvTrack, want media.Subtitle) (int, bool) {
	for _, t := range tracks {
		if t.Type == "sub" && want.URL != "" && t.ExternalFilename == want.URL {
			return t.ID, true
		}
	}
	for _, t := range tracks {
		if t.Type != "sub" {
			continue
		}
		if want.Label != "" && strings.EqualFold(t.Title, want.Label) {
			return t.ID, true
		}
		if want.Language != "" && strings.EqualFold(t.Lang, want.Language) {
			return t.ID, true
		}
	}
	return 0, false
}

func (m *MPV) SelectAudio(ctx context.Context, trackID int) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	return c.setProperty(ctx, "aid", trackID)
}

func (m *MPV) SetSubtitleDelay(ctx context.Context, offsetMs int64) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	return c.setProperty(ctx, "sub-delay", float64(offsetMs)/1000)
}

// Close quits mpv and removes the socket directory.
func (m *MPV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ipc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		m.ipc.command(ctx, "quit")
		cancel()
		m.ipc.close()
		m.ipc = nil
	}
	if m.exited != nil {
		select {
		case <-m.exited:
		case <-time.After(2 * time.Second):
			m.cmd.Process.Kill()
		}
		m.exited = nil
	}
	if m.socketDir != "" {
		os.RemoveAll(m.socketDir)
		m.socketDir = ""
	}
	return nil
}

// FormatDuration formats milliseconds as H:MM:SS or M:SS.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
