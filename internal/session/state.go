// Package session coordinates what the user has selected with what the
// playback engine is doing: it resolves links, decides when the engine must
// reload, tracks playback position and signals the end of an episode.
package session

import (
	"fmt"

	"flixclusive/internal/media"
)

// Phase is the lifecycle state of a playback session.
type Phase int

const (
	Idle Phase = iota
	Preparing
	Ready
	Playing
	Paused
	Ended
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Every phase may return to Idle, and staying in a phase is always allowed.
var transitions = map[Phase][]Phase{
	Idle:      {Preparing},
	Preparing: {Ready, Failed},
	Ready:     {Playing, Paused, Preparing, Failed},
	Playing:   {Paused, Ended, Preparing, Failed},
	Paused:    {Playing, Ended, Preparing, Failed},
	Ended:     {Playing, Paused, Preparing},
	Failed:    {Preparing},
}

// CanTransition reports whether a session in phase p may move to next.
func (p Phase) CanTransition(next Phase) bool {
	if p == next || next == Idle {
		return true
	}
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Loaded reports whether the engine has a stream open.
func (p Phase) Loaded() bool {
	return p == Ready || p == Playing || p == Paused || p == Ended
}

// State is an immutable snapshot of a playback session.
type State struct {
	Phase Phase
	Film  media.Film

	Links     []media.Stream
	Subtitles []media.Subtitle // Off-prefixed
	Audio     []media.AudioTrack

	LinkIndex     int
	SubtitleIndex int
	QualityIndex  int
	AudioIndex    int

	// LoadedURL is the unproxied URL of the link the engine has open.
	LoadedURL string

	PositionMs       int64
	DurationMs       int64
	Buffering        bool
	Untracked        bool
	SubtitleOffsetMs int64
	PiP              bool

	// Message is the last user-facing notice.
	Message string
	Err     error
}

// CurrentLink returns the selected link.
func (s State) CurrentLink() (media.Stream, bool) {
	if s.LinkIndex < 0 || s.LinkIndex >= len(s.Links) {
		return media.Stream{}, false
	}
	return s.Links[s.LinkIndex], true
}

// Qualities returns the distinct quality labels of the links, in order.
func (s State) Qualities() []string { return Qualities(s.Links) }

// Remaining returns the time left in the current item, or 0 when unknown.
func (s State) Remaining() int64 {
	if s.DurationMs <= 0 || s.PositionMs >= s.DurationMs {
		return 0
	}
	return s.DurationMs - s.PositionMs
}

func (s State) clone() State {
	c := s
	c.Links = append([]media.Stream(nil), s.Links...)
	c.Subtitles = append([]media.Subtitle(nil), s.Subtitles...)
	c.Audio = append([]media.AudioTrack(nil), s.Audio...)
	return c
}

// Qualities returns the distinct non-empty quality labels of links.
func Qualities(links []media.Stream) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range links {
		if l.Quality == "" || seen[l.Quality] {
			continue
		}
		seen[l.Quality] = true
		out = append(out, l.Quality)
	}
	return out
}
