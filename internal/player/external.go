package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"

	"flixclusive/internal/subtitle"
)

// External launches players without an IPC channel (vlc, iina, celluloid).
// Position tracking and runtime control are not supported; the session
// only learns when the player exits.
type External struct {
	name string

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	subs   *subtitle.TempDir
}

// NewExternal creates a launch-only engine for the named player.
func NewExternal(name string) *External { return &External{name: name} }

func (e *External) Name() string { return e.name }

func (e *External) Available() bool {
	_, err := exec.LookPath(e.name)
	return err == nil
}

// Args builds the player's command line. vlc uses its own flags; iina and
// celluloid accept mpv-style flags.
func (e *External) Args(req PrepareRequest, subFile string) []string {
	secs := req.StartMs / 1000
	if e.name == "vlc" {
		args := []string{req.URL, "--meta-title", req.Title, "--play-and-exit"}
		if secs > 0 {
			args = append(args, fmt.Sprintf("--start-time=%d", secs))
		}
		if subFile != "" {
			args = append(args, "--sub-file", subFile)
		}
		return args
	}

	args := []string{req.URL, "--force-media-title=" + req.Title}
	if secs > 0 {
		args = append(args, fmt.Sprintf("--start=+%d", secs))
	}
	if subFile != "" {
		args = append(args, "--sub-file="+subFile)
	}
	return args
}

// Prepare starts the player, killing any previous instance first.
func (e *External) Prepare(ctx context.Context, req PrepareRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	var subFile string
	if sub, ok := subtitle.Real(req.Subtitles, req.SubtitleIndex); ok {
		dir, err := subtitle.NewTempDir()
		if err == nil {
			e.subs = dir
			if subFile, err = dir.Download(ctx, sub); err != nil {
				log.Debug().Err(err).Msg("Subtitle download failed; continuing without subtitles")
				subFile = ""
			}
		}
	}

	cmd := exec.Command(e.name, e.Args(req, subFile)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", e.name, err)
	}

	exited := make(chan struct{})
	go func() {
		// Non-zero exits on user close are normal.
		cmd.Wait()
		close(exited)
	}()
	e.cmd = cmd
	e.exited = exited
	return nil
}

// Status only reports whether the player is still running.
func (e *External) Status(context.Context) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.exited == nil {
		return Status{}, ErrNotPrepared
	}
	select {
	case <-e.exited:
		return Status{}, ErrClosed
	default:
		return Status{Untracked: true}, nil
	}
}

func (e *External) Seek(context.Context, int64) error { return ErrUnsupported }
func (e *External) SetPaused(context.Context, bool) error { return ErrUnsupported }
func (e *External) SelectSubtitle(context.Context, int) error { return ErrUnsupported }
func (e *External) SelectAudio(context.Context, int) error { return ErrUnsupported }
func (e *External) SetSubtitleDelay(context.Context, int64) error { return ErrUnsupported }

func (e *External) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	return nil
}

func (e *External) stopLocked() {
	if e.cmd != nil && e.exited != nil {
		select {
		case <-e.exited:
		default:
			e.cmd.Process.Kill()
			<-e.exited
		}
	}
	e.cmd = nil
	e.exited = nil
	if e.subs != nil {
		e.subs.Cleanup()
		e.subs = nil
	}
}
