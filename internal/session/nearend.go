package session

import "fmt"

const (
	// prefetchRemainingPercent queues the next episode once this share of
	// the duration is left.
	prefetchRemainingPercent = 20
	countdownWindowMs        = 10_000
)

// SignalKind identifies a near-end event.
type SignalKind int

const (
	SignalPrefetch SignalKind = iota + 1
	SignalCountdown
	SignalLoadingNext
)

// Signal is emitted by NearEnd as an episode approaches its end.
type Signal struct {
	Kind    SignalKind
	Seconds int // countdown only
}

// Message returns the user-facing text, or "" for silent signals.
func (s Signal) Message() string {
	switch s.Kind {
	case SignalCountdown:
		return fmt.Sprintf("Next episode in %ds", s.Seconds)
	case SignalLoadingNext:
		return "Loading next episode..."
	default:
		return ""
	}
}

// NearEndInput is the playback state NearEnd evaluates.
type NearEndInput struct {
	PositionMs  int64
	DurationMs  int64
	TV          bool
	LastEpisode bool
	PiP         bool
}

// NearEnd tracks the end-of-episode signals for one episode. It is not safe
// for concurrent use.
type NearEnd struct {
	prefetched    bool
	lastCountdown int
	loadingNext   bool
}

func NewNearEnd() *NearEnd { return &NearEnd{lastCountdown: -1} }

// Reset prepares for a new episode.
func (n *NearEnd) Reset() {
	n.prefetched = false
	n.lastCountdown = -1
	n.loadingNext = false
}

// Evaluate returns the signals due at this position. Prefetch fires once,
// each countdown second fires once, and loading-next fires once after the
// countdown reaches zero.
func (n *NearEnd) Evaluate(in NearEndInput) []Signal {
	if !in.TV || in.LastEpisode || in.PiP || in.DurationMs <= 0 {
		return nil
	}
	remaining := in.DurationMs - in.PositionMs
	if remaining < 0 {
		remaining = 0
	}

	var out []Signal
	if !n.prefetched && remaining*100 <= in.DurationMs*prefetchRemainingPercent {
		n.prefetched = true
		out = append(out, Signal{Kind: SignalPrefetch})
	}
	if n.loadingNext {
		return out
	}

	if remaining > countdownWindowMs {
		n.lastCountdown = -1
		return out
	}
	secs := int(remaining / 1000)
	if secs != n.lastCountdown {
		n.lastCountdown = secs
		out = append(out, Signal{Kind: SignalCountdown, Seconds: secs})
	}
	if secs == 0 {
		n.loadingNext = true
		out = append(out, Signal{Kind: SignalLoadingNext})
	}
	return out
}
