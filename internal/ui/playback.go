package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flixclusive/internal/media"
	"flixclusive/internal/player"
	"flixclusive/internal/session"
)

const (
	seekStepMs   = 10_000
	offsetStepMs = 500
	snackTTL     = 3 * time.Second
)

// Controller is the part of the session coordinator the playback view drives.
type Controller interface {
	TogglePlay(ctx context.Context) error
	Seek(ctx context.Context, positionMs int64) error
	SelectSubtitle(ctx context.Context, index int) error
	SetSubtitleOffset(ctx context.Context, offsetMs int64) error
	SelectLink(ctx context.Context, index int) error
	SelectAudio(ctx context.Context, index int) error
	SelectQuality(ctx context.Context, index int) error
	SetPiP(on bool)
	Retry(ctx context.Context) error
}

type (
	stateMsg        session.State
	stateClosedMsg  struct{}
	snackExpiredMsg struct{ seq int }
	actionErrMsg    struct{ err error }
)

// Playback renders session state and maps keys to coordinator controls.
type Playback struct {
	ctx    context.Context
	ctrl   Controller
	states <-chan session.State

	st       session.State
	bar      progress.Model
	snack    string
	snackSeq int
	err      error
	done     bool
}

// NewPlayback builds the view. states is a store subscription.
func NewPlayback(ctx context.Context, ctrl Controller, states <-chan session.State) Playback {
	return Playback{
		ctx:    ctx,
		ctrl:   ctrl,
		states: states,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(50), progress.WithoutPercentage()),
	}
}

func waitState(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return stateClosedMsg{}
		}
		return stateMsg(s)
	}
}

func (m Playback) Init() tea.Cmd { return waitState(m.states) }

func (m Playback) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := msg.Width - 20
		if w > 80 {
			w = 80
		}
		if w > 10 {
			m.bar.Width = w
		}
		return m, nil

	case stateMsg:
		s := session.State(msg)
		var cmds []tea.Cmd
		if s.Message != "" && s.Message != m.st.Message {
			cmd := m.showSnack(s.Message)
			cmds = append(cmds, cmd)
		}
		m.st = s
		cmds = append(cmds, waitState(m.states))
		return m, tea.Batch(cmds...)

	case stateClosedMsg:
		m.done = true
		return m, tea.Quit

	case snackExpiredMsg:
		if msg.seq == m.snackSeq {
			m.snack = ""
		}
		return m, nil

	case actionErrMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Playback) showSnack(text string) tea.Cmd {
	m.snackSeq++
	m.snack = text
	seq := m.snackSeq
	return tea.Tick(snackTTL, func(time.Time) tea.Msg { return snackExpiredMsg{seq: seq} })
}

func (m Playback) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.st
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.done = true
		return m, tea.Quit
	case " ", "space", "p":
		return m, m.act(func(ctx context.Context) error { return m.ctrl.TogglePlay(ctx) })
	case "right", "l":
		pos := st.PositionMs + seekStepMs
		return m, m.act(func(ctx context.Context) error { return m.ctrl.Seek(ctx, pos) })
	case "left", "h":
		pos := st.PositionMs - seekStepMs
		return m, m.act(func(ctx context.Context) error { return m.ctrl.Seek(ctx, pos) })
	case "s":
		if len(st.Subtitles) == 0 {
			return m, nil
		}
		next := (st.SubtitleIndex + 1) % len(st.Subtitles)
		return m, m.act(func(ctx context.Context) error { return m.ctrl.SelectSubtitle(ctx, next) })
	case "]":
		off := st.SubtitleOffsetMs + offsetStepMs
		return m, m.act(func(ctx context.Context) error { return m.ctrl.SetSubtitleOffset(ctx, off) })
	case "[":
		off := st.SubtitleOffsetMs - offsetStepMs
		return m, m.act(func(ctx context.Context) error { return m.ctrl.SetSubtitleOffset(ctx, off) })
	case "n":
		if len(st.Links) < 2 {
			return m, nil
		}
		next := (st.LinkIndex + 1) % len(st.Links)
		return m, m.act(func(ctx context.Context) error { return m.ctrl.SelectLink(ctx, next) })
	case "v":
		qualities := st.Qualities()
		if len(qualities) < 2 {
			return m, nil
		}
		next := (st.QualityIndex + 1) % len(qualities)
		return m, m.act(func(ctx context.Context) error { return m.ctrl.SelectQuality(ctx, next) })
	case "m":
		// The mini view stands in for picture-in-picture.
		m.ctrl.SetPiP(!st.PiP)
		return m, nil
	case "r":
		if st.Phase != session.Failed {
			return m, nil
		}
		return m, m.act(func(ctx context.Context) error { return m.ctrl.Retry(ctx) })
	case "a":
		if len(st.Audio) < 2 {
			return m, nil
		}
		next := (st.AudioIndex + 1) % len(st.Audio)
		return m, m.act(func(ctx context.Context) error { return m.ctrl.SelectAudio(ctx, next) })
	}
	return m, nil
}

// act runs a control off the UI goroutine; failures surface in the view.
func (m Playback) act(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m Playback) View() string {
	st := m.st
	if st.PiP {
		return m.miniView()
	}
	var b strings.Builder

	title := "Loading"
	if st.Film.ID != "" {
		title = session.Title(st.Film)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(phaseLabel(st)))
	b.WriteString("\n\n")

	ratio := 0.0
	if st.DurationMs > 0 {
		ratio = float64(st.PositionMs) / float64(st.DurationMs)
	}
	b.WriteString(m.bar.ViewAs(ratio))
	if st.Untracked {
		b.WriteString(dimStyle.Render("  position unavailable"))
	} else {
		fmt.Fprintf(&b, "  %s / %s", player.FormatDuration(st.PositionMs), player.FormatDuration(st.DurationMs))
	}
	b.WriteString("\n\n")

	if link, ok := st.CurrentLink(); ok {
		server := linkLabel(link)
		b.WriteString(dimStyle.Render("Server:   ") + server + "\n")
	}
	if len(st.Subtitles) > 0 && st.SubtitleIndex < len(st.Subtitles) {
		sub := st.Subtitles[st.SubtitleIndex].Label
		if st.SubtitleOffsetMs != 0 {
			sub += fmt.Sprintf(" (%+.1fs)", float64(st.SubtitleOffsetMs)/1000)
		}
		b.WriteString(dimStyle.Render("Subtitle: ") + sub + "\n")
	}
	if len(st.Audio) > 0 && st.AudioIndex < len(st.Audio) {
		a := st.Audio[st.AudioIndex]
		label := a.Label
		if label == "" {
			label = a.Language
		}
		b.WriteString(dimStyle.Render("Audio:    ") + label + "\n")
	}

	if st.Err != nil {
		b.WriteString("\n" + errorStyle.Render(st.Err.Error()) + dimStyle.Render("  r: retry") + "\n")
	} else if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	if m.snack != "" {
		b.WriteString("\n" + snackStyle.Render(m.snack) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("space: play/pause • ←/→: seek • s: subtitles • [/]: sync • n: server • v: quality • a: audio • m: mini • q: quit"))
	return frameStyle.Render(b.String())
}

// miniView is the single-line layout shown in picture-in-picture mode.
func (m Playback) miniView() string {
	st := m.st
	line := statusStyle.Render(phaseLabel(st))
	if st.Film.ID != "" {
		line = titleStyle.Render(session.Title(st.Film)) + "  " + line
	}
	if !st.Untracked {
		line += fmt.Sprintf("  %s / %s", player.FormatDuration(st.PositionMs), player.FormatDuration(st.DurationMs))
	}
	return line + "  " + helpStyle.Render("m: expand")
}

func linkLabel(link media.Stream) string {
	if link.Quality == "" {
		return link.Server
	}
	return link.Server + " (" + link.Quality + ")"
}

func phaseLabel(st session.State) string {
	if st.Buffering && st.Phase == session.Playing {
		return "Buffering"
	}
	return cases.Title(language.English).String(st.Phase.String())
}

// RunPlayback shows the playback view until the user quits, the store
// closes, or ctx is done.
func RunPlayback(ctx context.Context, ctrl Controller, store *session.Store) error {
	states, cancel := store.Subscribe()
	defer cancel()

	if !Interactive() {
		return followPlain(ctx, states, nil)
	}

	p := tea.NewProgram(NewPlayback(ctx, ctrl, states), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running playback view: %w", err)
	}
	return nil
}

// followPlain prints phase changes and messages as lines until the
// subscription closes or ctx is done.
func followPlain(ctx context.Context, states <-chan session.State, w io.Writer) error {
	if w == nil {
		w = stderr
	}
	var last session.State
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if first || st.Phase != last.Phase {
				line := phaseLabel(st)
				if st.Film.ID != "" {
					line = session.Title(st.Film) + ": " + line
				}
				if st.Err != nil {
					line += " (" + st.Err.Error() + ")"
				}
				fmt.Fprintln(w, line)
			}
			if st.Message != "" && st.Message != last.Message {
				fmt.Fprintln(w, st.Message)
			}
			last, first = st, false
		}
	}
}
