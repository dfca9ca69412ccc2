package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"flixclusive/internal/media"
)

// fakeMPV answers mpv JSON IPC commands from an in-memory property map.
type fakeMPV struct {
	mu       sync.Mutex
	props    map[string]any
	commands [][]any
	ln       net.Listener
}

func startFakeMPV(t *testing.T, props map[string]any) (*fakeMPV, string) {
	t.Helper()
	// Unix socket paths are length-limited; keep this one short.
	dir, err := os.MkdirTemp("", "mpvt")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMPV{props: props, ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	return f, path
}

func (f *fakeMPV) serve(conn net.Conn) {
	defer conn.Close()
	enc := json.NewEncoder(conn)
	// Unsolicited events must be ignored by the client.
	enc.Encode(map[string]any{"event": "idle"})

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req struct {
			Command   []any `json:"command"`
			RequestID int64 `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || len(req.Command) == 0 {
			continue
		}
		resp := map[string]any{"request_id": req.RequestID, "error": "success"}

		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		switch req.Command[0] {
		case "get_property":
			if v, ok := f.props[req.Command[1].(string)]; ok {
				resp["data"] = v
			} else {
				resp["error"] = "property unavailable"
			}
		case "set_property":
			f.props[req.Command[1].(string)] = req.Command[2]
		}
		f.mu.Unlock()

		enc.Encode(resp)
	}
}

func (f *fakeMPV) prop(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[name]
}

func (f *fakeMPV) sawCommand(name string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c[0] == name {
			return c
		}
	}
	return nil
}

func attachedMPV(t *testing.T, props map[string]any) (*MPV, *fakeMPV) {
	t.Helper()
	fake, path := startFakeMPV(t, props)
	m := NewMPV()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.attach(ctx, path); err != nil {
		t.Fatalf("attach() error: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, fake
}

func TestMPVStatus(t *testing.T) {
	m, _ := attachedMPV(t, map[string]any{
		"time-pos":         12.5,
		"duration":         3600.0,
		"pause":            true,
		"paused-for-cache": false,
		"eof-reached":      false,
		"track-list": []map[string]any{
			{"id": 1, "type": "video"},
			{"id": 1, "type": "audio", "lang": "eng", "title": "Stereo"},
			{"id": 2, "type": "audio", "lang": "jpn"},
		},
	})

	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if st.PositionMs != 12_500 || st.DurationMs != 3_600_000 || !st.Paused {
		t.Errorf("Status() = %+v", st)
	}
	if len(st.AudioTracks) != 2 || st.AudioTracks[1].Language != "jpn" {
		t.Errorf("AudioTracks = %+v", st.AudioTracks)
	}
}

func TestMPVStatusWhileOpening(t *testing.T) {
	// time-pos and duration are unavailable until the file opens.
	m, _ := attachedMPV(t, map[string]any{"pause": false})

	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if st.PositionMs != 0 || st.DurationMs != 0 {
		t.Errorf("Status() = %+v, want zero position", st)
	}
}

func TestMPVPrepareSelectsSubtitle(t *testing.T) {
	m, fake := attachedMPV(t, map[string]any{
		"duration": 100.0,
		"track-list": []map[string]any{
			{"id": 1, "type": "sub", "lang": "fre", "external": true, "external-filename": "https://cdn.example.com/fr.vtt"},
			{"id": 2, "type": "sub", "lang": "eng", "external": true, "external-filename": "https://cdn.example.com/en.vtt"},
		},
	})

	subs := []media.Subtitle{
		{Label: "Off", Source: media.Embedded},
		{Language: "French", URL: "https://cdn.example.com/fr.vtt"},
		{Language: "English", URL: "https://cdn.example.com/en.vtt"},
	}
	err := m.Prepare(context.Background(), PrepareRequest{
		URL:              "https://cdn.example.com/index.m3u8",
		Title:            "Film",
		StartMs:          90_000,
		Subtitles:        subs,
		SubtitleIndex:    2,
		SubtitleOffsetMs: 1500,
		Paused:           true,
	})
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if got := fake.prop("start"); got != "+90.000" {
		t.Errorf("start = %v, want +90.000", got)
	}
	if got := fake.prop("sub-delay"); got != 1.5 {
		t.Errorf("sub-delay = %v, want 1.5", got)
	}
	if got := fake.prop("pause"); got != true {
		t.Errorf("pause = %v, want true", got)
	}
	if got := fake.prop("sid"); got != float64(2) {
		t.Errorf("sid = %v, want 2", got)
	}
	if c := fake.sawCommand("loadfile"); c == nil || c[1] != "https://cdn.example.com/index.m3u8" {
		t.Errorf("loadfile command = %v", c)
	}

	if err := m.SelectSubtitle(context.Background(), 0); err != nil {
		t.Fatalf("SelectSubtitle(0) error: %v", err)
	}
	if got := fake.prop("sid"); got != "no" {
		t.Errorf("sid = %v, want no", got)
	}
	if err := m.SelectSubtitle(context.Background(), 5); err == nil {
		t.Error("SelectSubtitle out of range should fail")
	}
}

func TestMPVControls(t *testing.T) {
	m, fake := attachedMPV(t, map[string]any{})
	ctx := context.Background()

	if err := m.Seek(ctx, 42_000); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	if c := fake.sawCommand("seek"); c == nil || c[1] != 42.0 || c[2] != "absolute" {
		t.Errorf("seek command = %v", c)
	}
	if err := m.SetPaused(ctx, true); err != nil || fake.prop("pause") != true {
		t.Errorf("SetPaused() = %v, pause = %v", err, fake.prop("pause"))
	}
	if err := m.SelectAudio(ctx, 3); err != nil || fake.prop("aid") != float64(3) {
		t.Errorf("SelectAudio() = %v, aid = %v", err, fake.prop("aid"))
	}
	if err := m.SetSubtitleDelay(ctx, -250); err != nil || fake.prop("sub-delay") != -0.25 {
		t.Errorf("SetSubtitleDelay() = %v, sub-delay = %v", err, fake.prop("sub-delay"))
	}
}

func TestMPVBeforePrepare(t *testing.T) {
	m := NewMPV()
	if _, err := m.Status(context.Background()); !errors.Is(err, ErrNotPrepared) {
		t.Errorf("Status() error = %v, want ErrNotPrepared", err)
	}
}

func TestMatchSubtitleTrack(t *testing.T) {
	tracks := []mpvTrack{
		{ID: 1, Type: "audio", Lang: "eng"},
		{ID: 3, Type: "sub", Lang: "eng", Title: "English"},
		{ID: 4, Type: "sub", Lang: "spa", Title: "Spanish", ExternalFilename: "https://x/es.vtt"},
	}

	tests := []struct {
		name string
		want media.Subtitle
		id   int
		ok   bool
	}{
		{"by url", media.Subtitle{URL: "https://x/es.vtt"}, 4, true},
		{"by label", media.Subtitle{Label: "english"}, 3, true},
		{"by language", media.Subtitle{Language: "SPA"}, 4, true},
		{"no match", media.Subtitle{Language: "ger"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := matchSubtitleTrack(tracks, tt.want)
			if id != tt.id || ok != tt.ok {
				t.Errorf("matchSubtitleTrack() = %d, %v; want %d, %v", id, ok, tt.id, tt.ok)
			}
		})
	}
}

func TestExternalArgs(t *testing.T) {
	req := PrepareRequest{URL: "https://cdn/x.m3u8", Title: "Film", StartMs: 61_500}

	vlc := NewExternal("vlc").Args(req, "/tmp/en.vtt")
	wantVLC := []string{"https://cdn/x.m3u8", "--meta-title", "Film", "--play-and-exit", "--start-time=61", "--sub-file", "/tmp/en.vtt"}
	if !equalStrings(vlc, wantVLC) {
		t.Errorf("vlc args = %q, want %q", vlc, wantVLC)
	}

	iina := NewExternal("iina").Args(PrepareRequest{URL: "https://cdn/x.m3u8", Title: "Film"}, "")
	wantIINA := []string{"https://cdn/x.m3u8", "--force-media-title=Film"}
	if !equalStrings(iina, wantIINA) {
		t.Errorf("iina args = %q, want %q", iina, wantIINA)
	}
}

func TestExternalControlsUnsupported(t *testing.T) {
	e := NewExternal("vlc")
	ctx := context.Background()
	if _, err := e.Status(ctx); !errors.Is(err, ErrNotPrepared) {
		t.Errorf("Status() before Prepare = %v", err)
	}
	for name, err := range map[string]error{
		"Seek":             e.Seek(ctx, 0),
		"SetPaused":        e.SetPaused(ctx, true),
		"SelectSubtitle":   e.SelectSubtitle(ctx, 1),
		"SelectAudio":      e.SelectAudio(ctx, 1),
		"SetSubtitleDelay": e.SetSubtitleDelay(ctx, 100),
	} {
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s() = %v, want ErrUnsupported", name, err)
		}
	}
}

func TestNew(t *testing.T) {
	tests := map[string]string{"mpv": "mpv", "": "mpv", "vlc": "vlc", "iina": "iina", "celluloid": "celluloid"}
	for in, want := range tests {
		if got := New(in).Name(); got != want {
			t.Errorf("New(%q).Name() = %q, want %q", in, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{65_000, "1:05"},
		{3_725_000, "1:02:05"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
