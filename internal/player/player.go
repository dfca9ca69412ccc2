// Package player drives external media players. All invocations use
// exec.Command with explicit argument slices; mpv is additionally
// controlled over its JSON IPC socket.
package player

import (
	"context"
	"errors"

	"flixclusive/internal/media"
)

var (
	// ErrUnsupported is returned by engines that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by player")
	// ErrClosed is returned once the player process has exited.
	ErrClosed = errors.New("player closed")
	// ErrNotPrepared is returned when controlling an engine before Prepare.
	ErrNotPrepared = errors.New("player not prepared")
)

// PrepareRequest describes what the engine should load.
type PrepareRequest struct {
	URL              string
	Title            string
	StartMs          int64
	Subtitles        []media.Subtitle // Off-prefixed
	SubtitleIndex    int
	SubtitleOffsetMs int64
	// Paused opens the stream without starting playback.
	Paused bool
}

// Status is a snapshot of what the engine is doing.
type Status struct {
	PositionMs  int64
	DurationMs  int64
	Paused      bool
	Buffering   bool
	Ended       bool
	Untracked   bool // the engine cannot report position
	AudioTracks []media.AudioTrack
}

// Engine is a playback engine the session layer can drive.
type Engine interface {
	Name() string
	Available() bool

	// Prepare loads a stream, replacing whatever is playing.
	Prepare(ctx context.Context, req PrepareRequest) error
	Status(ctx context.Context) (Status, error)
	Seek(ctx context.Context, positionMs int64) error
	SetPaused(ctx context.Context, paused bool) error
	// SelectSubtitle selects an index of the Off-prefixed list; 0 disables subtitles.
	SelectSubtitle(ctx context.Context, index int) error
	SelectAudio(ctx context.Context, trackID int) error
	SetSubtitleDelay(ctx context.Context, offsetMs int64) error
	Close() error
}

// New creates an engine by player name.
func New(name string) Engine {
	switch name {
	case "vlc", "iina", "celluloid":
		return NewExternal(name)
	default:
		return NewMPV()
	}
}
