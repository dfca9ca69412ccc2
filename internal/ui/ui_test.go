package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"flixclusive/internal/media"
	"flixclusive/internal/session"
)

func TestSelectPlain(t *testing.T) {
	var out bytes.Buffer
	idx, err := selectPlain(strings.NewReader("9\nx\n2\n"), &out, "Pick", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("selectPlain() error: %v", err)
	}
	if idx != 1 {
		t.Errorf("selectPlain() = %d, want 1", idx)
	}
	if !strings.Contains(out.String(), "  2) b") {
		t.Errorf("listing missing numbered item:\n%s", out.String())
	}
	if strings.Count(out.String(), "invalid choice") != 2 {
		t.Errorf("want two invalid-choice notices:\n%s", out.String())
	}
}

func TestSelectPlainCancel(t *testing.T) {
	for _, in := range []string{"", "q\n", "\n"} {
		if _, err := selectPlain(strings.NewReader(in), &bytes.Buffer{}, "Pick", []string{"a"}); !errors.Is(err, ErrCancelled) {
			t.Errorf("input %q: err = %v, want ErrCancelled", in, err)
		}
	}
}

func TestInputPlain(t *testing.T) {
	got, err := inputPlain(strings.NewReader("  the office \n"), &bytes.Buffer{}, "Search")
	if err != nil || got != "the office" {
		t.Errorf("inputPlain() = %q, %v", got, err)
	}
	if _, err := inputPlain(strings.NewReader("\n"), &bytes.Buffer{}, "Search"); !errors.Is(err, ErrCancelled) {
		t.Errorf("empty input err = %v, want ErrCancelled", err)
	}
}

func TestPickerChoosesHighlighted(t *testing.T) {
	var m tea.Model = newPicker("Pick", []string{"a", "b", "c"})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should quit")
	}
	if got := m.(picker).chosen; got != 1 {
		t.Errorf("chosen = %d, want 1", got)
	}
}

func TestPickerEscCancels(t *testing.T) {
	var m tea.Model = newPicker("Pick", []string{"a"})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := m.(picker).chosen; got != -1 {
		t.Errorf("chosen = %d, want -1", got)
	}
}

func TestTextPrompt(t *testing.T) {
	var m tea.Model = newTextPrompt("Search")
	for _, r := range "dune" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := m.(textPrompt).value; got != "dune" {
		t.Errorf("value = %q, want dune", got)
	}
}

type call struct {
	name string
	arg  int64
}

type fakeController struct{ calls []call }

func (f *fakeController) record(name string, arg int64) error {
	f.calls = append(f.calls, call{name, arg})
	return nil
}

func (f *fakeController) TogglePlay(context.Context) error { return f.record("toggle", 0) }
func (f *fakeController) Seek(_ context.Context, ms int64) error {
	return f.record("seek", ms)
}
func (f *fakeController) SelectSubtitle(_ context.Context, i int) error {
	return f.record("subtitle", int64(i))
}
func (f *fakeController) SetSubtitleOffset(_ context.Context, ms int64) error {
	return f.record("offset", ms)
}
func (f *fakeController) SelectLink(_ context.Context, i int) error {
	return f.record("link", int64(i))
}
func (f *fakeController) Retry(context.Context) error { return f.record("retry", 0) }
func (f *fakeController) SelectQuality(_ context.Context, i int) error {
	return f.record("quality", int64(i))
}
func (f *fakeController) SetPiP(on bool) {
	var v int64
	if on {
		v = 1
	}
	f.record("pip", v)
}
func (f *fakeController) SelectAudio(context.Context, int) error {
	return errors.New("engine cannot switch audio")
}

func playingState() session.State {
	return session.State{
		Phase: session.Playing,
		Film:  media.Film{ID: "movie/watch-dune-1", Title: "Dune"},
		Links: []media.Stream{
			{URL: "https://a/1.m3u8", Server: "Vidcloud", Quality: "1080p"},
			{URL: "https://b/1.m3u8", Server: "UpCloud", Quality: "auto"},
		},
		Subtitles: []media.Subtitle{
			{Label: "Off"},
			{Label: "English", Language: "en"},
			{Label: "Spanish", Language: "es"},
		},
		Audio:            []media.AudioTrack{{ID: 1, Language: "en"}, {ID: 2, Language: "ja"}},
		SubtitleIndex:    1,
		PositionMs:       65_000,
		DurationMs:       130_000,
		SubtitleOffsetMs: 1500,
		Message:          "Subtitle: English",
	}
}

func press(t *testing.T, m tea.Model, key tea.KeyMsg) tea.Model {
	t.Helper()
	m, cmd := m.Update(key)
	if cmd != nil {
		if msg := cmd(); msg != nil {
			m, _ = m.Update(msg)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestPlaybackKeys(t *testing.T) {
	ctrl := &fakeController{}
	var m tea.Model = NewPlayback(context.Background(), ctrl, make(chan session.State))
	m, _ = m.Update(stateMsg(playingState()))

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m = press(t, m, runes("s"))
	m = press(t, m, runes("]"))
	m = press(t, m, runes("n"))
	m = press(t, m, runes("v"))
	m = press(t, m, runes("m"))
	m = press(t, m, runes("r")) // ignored outside the error phase
	m = press(t, m, runes("a"))

	want := []call{
		{"toggle", 0},
		{"seek", 75_000},
		{"seek", 55_000},
		{"subtitle", 2},
		{"offset", 2000},
		{"link", 1},
		{"quality", 1},
		{"pip", 1},
	}
	if len(ctrl.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", ctrl.calls, want)
	}
	for i := range want {
		if ctrl.calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, ctrl.calls[i], want[i])
		}
	}

	if got := m.(Playback).err; got == nil || !strings.Contains(got.Error(), "audio") {
		t.Errorf("failed control should surface in the view, err = %v", got)
	}
}

func TestPlaybackView(t *testing.T) {
	var m tea.Model = NewPlayback(context.Background(), &fakeController{}, make(chan session.State))
	m, _ = m.Update(stateMsg(playingState()))

	view := m.View()
	for _, want := range []string{"Dune", "Playing", "1:05 / 2:10", "Vidcloud (1080p)", "English (+1.5s)", "Subtitle: English"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	// The snackbar clears only for the latest message.
	p := m.(Playback)
	m, _ = m.Update(snackExpiredMsg{seq: p.snackSeq - 1})
	if m.(Playback).snack == "" {
		t.Error("stale expiry cleared the snackbar")
	}
	m, _ = m.Update(snackExpiredMsg{seq: p.snackSeq})
	if m.(Playback).snack != "" {
		t.Error("snackbar should clear on its own expiry")
	}
}

func TestPlaybackMiniView(t *testing.T) {
	st := playingState()
	st.PiP = true
	var m tea.Model = NewPlayback(context.Background(), &fakeController{}, make(chan session.State))
	m, _ = m.Update(stateMsg(st))

	view := m.View()
	if strings.Contains(view, "\n") {
		t.Errorf("mini view spans several lines:\n%s", view)
	}
	for _, want := range []string{"Dune", "Playing", "1:05 / 2:10", "m: expand"} {
		if !strings.Contains(view, want) {
			t.Errorf("mini view missing %q: %s", want, view)
		}
	}
}

func TestPlaybackQuitsWhenStoreCloses(t *testing.T) {
	ch := make(chan session.State)
	close(ch)
	m := NewPlayback(context.Background(), &fakeController{}, ch)
	msg := m.Init()()
	if _, ok := msg.(stateClosedMsg); !ok {
		t.Fatalf("Init() on closed channel = %T, want stateClosedMsg", msg)
	}
	next, cmd := m.Update(msg)
	if cmd == nil || !next.(Playback).done {
		t.Error("closed store should quit the view")
	}
}

func TestFollowPlain(t *testing.T) {
	ch := make(chan session.State, 4)
	st := playingState()
	st.Phase = session.Preparing
	st.Message = ""
	ch <- st
	st.Phase = session.Playing
	ch <- st
	st.Message = "Next episode in 5s"
	ch <- st
	close(ch)

	var out bytes.Buffer
	if err := followPlain(context.Background(), ch, &out); err != nil {
		t.Fatal(err)
	}
	want := "Dune: Preparing\nDune: Playing\nNext episode in 5s\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}
