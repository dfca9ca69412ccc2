package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flixclusive/internal/media"
	"flixclusive/internal/player"
	"flixclusive/internal/subtitle"
	"flixclusive/internal/track"
)

const (
	DefaultPollInterval = time.Second
	// progressStepMs throttles progress reports while playing.
	progressStepMs = 10_000
)

// Request asks the coordinator to play a film or episode.
type Request struct {
	Film media.Film
	// Server is the preferred upstream server; empty means the provider default.
	Server string
}

func (r Request) key() string {
	return r.Film.ID + "|" + r.Film.EpisodeID() + "|" + r.Server
}

func filmKey(f media.Film) string { return f.ID + "|" + f.EpisodeID() }

// Resolver fetches stream links and subtitles for a request. It may return
// before every upstream server has answered; update then receives the merged
// lists each time more results arrive, until ctx is cancelled. Calls to
// update are serial, and lists only ever grow.
type Resolver interface {
	Resolve(ctx context.Context, req Request, update func([]media.Stream, []media.Subtitle)) ([]media.Stream, []media.Subtitle, error)
}

// URLRewriter maps upstream URLs to the URL the engine should open, such as
// a caching proxy. *cache.Proxy satisfies it.
type URLRewriter interface {
	URL(upstream string) string
}

// Hooks are called from the goroutine that caused the event. They must not
// block for long.
type Hooks struct {
	OnEpisodeResolved func(film media.Film)
	OnMessage         func(msg string)
	OnError           func(err error)
	OnPrefetchNext    func(film media.Film)
	OnLoadNext        func(film media.Film)
	OnProgress        func(film media.Film, positionMs, durationMs int64)
}

// Options configures a Coordinator.
type Options struct {
	Engine   player.Engine
	Resolver Resolver
	// SavedTime returns the resume position for a film, or 0.
	SavedTime func(ctx context.Context, film media.Film) int64
	Proxy     URLRewriter

	SubtitleLanguage string
	AudioLanguage    string
	Quality          string
	PollInterval     time.Duration

	Hooks Hooks
}

// Coordinator drives one playback session.
type Coordinator struct {
	id    string
	opts  Options
	store *Store
	log   zerolog.Logger

	// applyMu serializes everything that may reload the engine.
	applyMu sync.Mutex

	mu             sync.Mutex
	cancelLoad     context.CancelFunc
	seq            uint64
	lastReq        Request
	baseline       int
	subtitleChosen bool
	audioChosen    bool
	lastReportedMs int64
	closed         bool
	nearEnd        *NearEnd
}

// New creates a coordinator in the Idle phase.
func New(opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	id := uuid.NewString()
	return &Coordinator{
		id:      id,
		opts:    opts,
		store:   NewStore(State{Phase: Idle}),
		log:     log.With().Str("session", id).Logger(),
		nearEnd: NewNearEnd(),
	}
}

// ID returns the session identifier used in logs.
func (c *Coordinator) ID() string { return c.id }

// Store exposes the observable session state.
func (c *Coordinator) Store() *Store { return c.store }

// Snapshot is shorthand for Store().Snapshot().
func (c *Coordinator) Snapshot() State { return c.store.Snapshot() }

// Load resolves links for req and loads the preferred one. A newer Load
// cancels an older one still in flight. Repeating the request that is
// already loaded does nothing.
func (c *Coordinator) Load(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	st := c.store.Snapshot()
	if req.key() == c.lastReq.key() && st.Phase.Loaded() && st.Phase != Ended {
		c.mu.Unlock()
		c.log.Debug().Str("film", req.Film.ID).Msg("Ignoring duplicate load request")
		return nil
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	// loadCtx outlives a successful Load so late servers can still be
	// merged. The next Load, Reset or Close cancels it.
	loadCtx, cancel := context.WithCancel(ctx)
	keep := false
	defer func() {
		if !keep {
			cancel()
		}
	}()
	c.cancelLoad = cancel
	c.seq++
	seq := c.seq
	c.lastReq = req
	newFilm := filmKey(req.Film) != filmKey(st.Film)
	if newFilm {
		c.baseline = 0
		c.subtitleChosen = false
		c.audioChosen = false
		c.lastReportedMs = 0
		c.nearEnd.Reset()
	}
	c.mu.Unlock()

	_, err := c.store.Transition(Preparing, func(s *State) {
		if newFilm {
			*s = State{PiP: s.PiP}
		}
		s.Film = req.Film
		s.Err = nil
	})
	if err != nil {
		return err
	}
	c.log.Info().Str("film", req.Film.ID).Str("episode", req.Film.EpisodeID()).Str("server", req.Server).Msg("Resolving sources")

	loaded := make(chan struct{})
	defer close(loaded)
	links, subs, err := c.opts.Resolver.Resolve(loadCtx, req, func(links []media.Stream, subs []media.Subtitle) {
		select {
		case <-loaded:
		case <-loadCtx.Done():
			return
		}
		c.lateResults(loadCtx, seq, links, subs)
	})

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if c.superseded(seq) {
		c.log.Debug().Str("film", req.Film.ID).Msg("Load superseded by a newer request")
		return context.Canceled
	}
	if ctxErr := loadCtx.Err(); ctxErr != nil {
		c.store.Transition(Idle, nil)
		return ctxErr
	}
	if err != nil {
		return c.fail(classifyFetch(err))
	}
	if len(links) == 0 {
		return c.fail(&Error{Kind: KindUnavailable, Err: ErrNoSources})
	}

	c.store.Update(func(s *State) {
		s.Links = links
		s.LinkIndex = preferredLink(links, c.opts.Quality)
		s.QualityIndex = qualityIndex(links, s.LinkIndex)
	})
	if h := c.opts.Hooks.OnEpisodeResolved; h != nil {
		h(req.Film)
	}

	if err := c.observe(loadCtx, links, subs); err != nil {
		return err
	}
	if c.superseded(seq) {
		return context.Canceled
	}
	keep = true
	return nil
}

// lateResults applies lists from servers that answered after Load returned.
func (c *Coordinator) lateResults(ctx context.Context, seq uint64, links []media.Stream, subs []media.Subtitle) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.superseded(seq) || ctx.Err() != nil || !c.store.Snapshot().Phase.Loaded() {
		return
	}
	c.log.Debug().Int("links", len(links)).Int("subtitles", len(subs)).Msg("More sources resolved")
	if err := c.observe(ctx, links, subs); err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Msg("Applying late sources failed")
	}
}

// Observe applies a newly fetched link or subtitle list, reloading the
// engine when the reload rule requires it.
func (c *Coordinator) Observe(ctx context.Context, links []media.Stream, subs []media.Subtitle) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	return c.observe(ctx, links, subs)
}

// observe must be called with applyMu held.
func (c *Coordinator) observe(ctx context.Context, links []media.Stream, subs []media.Subtitle) error {
	c.mu.Lock()
	baseline := c.baseline
	chosen := c.subtitleChosen
	c.mu.Unlock()

	st := c.store.Snapshot()
	dec := DecideReload(ReloadInput{
		Links:            links,
		Subtitles:        subs,
		SelectedLink:     st.LinkIndex,
		LoadedURL:        st.LoadedURL,
		SubtitleBaseline: baseline,
	})

	withOff := subtitle.WithOff(subs)
	st = c.store.Update(func(s *State) {
		s.Links = links
		s.QualityIndex = qualityIndex(links, s.LinkIndex)
		s.Subtitles = withOff
		switch {
		case !chosen:
			s.SubtitleIndex = track.SubtitleIndex(withOff, c.opts.SubtitleLanguage)
		case s.SubtitleIndex >= len(withOff):
			s.SubtitleIndex = 0
		}
	})
	if !dec.Needed {
		return nil
	}

	link, ok := st.CurrentLink()
	if !ok {
		return c.fail(&Error{Kind: KindUnavailable, Err: ErrNoSources})
	}
	live := st.PositionMs
	paused := false
	if !dec.NewServer {
		live = c.livePosition(ctx, st.PositionMs)
		paused = st.Phase == Paused
	}
	start := dec.ResumeAt(func() int64 { return c.savedTime(ctx, st.Film) }, live)
	c.log.Debug().
		Bool("new_server", dec.NewServer).
		Bool("paused", paused).
		Int("subtitles", dec.Baseline).
		Int64("start_ms", start).
		Msg("Reloading engine")

	if err := c.prepare(ctx, link, start, paused); err != nil {
		return err
	}
	c.mu.Lock()
	c.baseline = dec.Baseline
	c.mu.Unlock()
	return nil
}

// livePosition asks the engine where playback is, falling back to the last
// polled position when the engine cannot tell.
func (c *Coordinator) livePosition(ctx context.Context, fallback int64) int64 {
	status, err := c.opts.Engine.Status(ctx)
	if err != nil || status.Untracked {
		return fallback
	}
	return status.PositionMs
}

// prepare loads link into the engine. A paused reload ends in Paused rather
// than Ready.
func (c *Coordinator) prepare(ctx context.Context, link media.Stream, startMs int64, paused bool) error {
	st, err := c.store.Transition(Preparing, func(s *State) { s.Err = nil })
	if err != nil {
		return err
	}

	url := link.URL
	if c.opts.Proxy != nil {
		url = c.opts.Proxy.URL(link.URL)
	}
	err = c.opts.Engine.Prepare(ctx, player.PrepareRequest{
		URL:              url,
		Title:            Title(st.Film),
		StartMs:          startMs,
		Subtitles:        st.Subtitles,
		SubtitleIndex:    st.SubtitleIndex,
		SubtitleOffsetMs: st.SubtitleOffsetMs,
		Paused:           paused,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(&Error{Kind: KindEngine, Err: err})
	}

	c.store.Transition(Ready, func(s *State) {
		s.LoadedURL = link.URL
		s.PositionMs = startMs
		s.Buffering = false
	})
	if paused {
		c.store.Transition(Paused, nil)
	}
	c.log.Info().Str("server", link.Server).Str("quality", link.Quality).Int64("start_ms", startMs).Msg("Stream loaded")
	return nil
}

func (c *Coordinator) savedTime(ctx context.Context, film media.Film) int64 {
	if c.opts.SavedTime == nil {
		return 0
	}
	return c.opts.SavedTime(ctx, film)
}

func (c *Coordinator) superseded(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != c.seq || c.closed
}

// fail moves the session to Failed and reports err.
func (c *Coordinator) fail(err *Error) error {
	c.store.Transition(Failed, func(s *State) { s.Err = err })
	c.log.Error().Err(err).Msg("Session failed")
	if h := c.opts.Hooks.OnError; h != nil {
		h(err)
	}
	return err
}

// engineError reports a failed control command without leaving the
// current phase.
func (c *Coordinator) engineError(err error) error {
	if errors.Is(err, player.ErrUnsupported) {
		return err
	}
	e := &Error{Kind: KindEngine, Err: err}
	c.log.Warn().Err(err).Msg("Engine command failed")
	if h := c.opts.Hooks.OnError; h != nil {
		h(e)
	}
	return e
}

func (c *Coordinator) message(msg string) {
	c.store.Update(func(s *State) { s.Message = msg })
	if h := c.opts.Hooks.OnMessage; h != nil {
		h(msg)
	}
}

// SelectLink switches to another link. The engine reloads from the saved
// time of the new source.
func (c *Coordinator) SelectLink(ctx context.Context, index int) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	st := c.store.Snapshot()
	if index < 0 || index >= len(st.Links) {
		return fmt.Errorf("link index %d out of range", index)
	}
	if index == st.LinkIndex && st.Phase.Loaded() {
		return nil
	}
	st = c.store.Update(func(s *State) {
		s.LinkIndex = index
		s.QualityIndex = qualityIndex(s.Links, index)
	})
	if err := c.observe(ctx, st.Links, realSubtitles(st.Subtitles)); err != nil {
		return err
	}
	link := st.Links[index]
	c.message(fmt.Sprintf("Switched to %s", linkLabel(link)))
	return nil
}

// SelectQuality switches to a link with the quality at index of
// State.Qualities, preferring the current server.
func (c *Coordinator) SelectQuality(ctx context.Context, index int) error {
	st := c.store.Snapshot()
	qualities := st.Qualities()
	if index < 0 || index >= len(qualities) {
		return fmt.Errorf("quality index %d out of range", index)
	}
	want := qualities[index]

	server := ""
	if cur, ok := st.CurrentLink(); ok {
		server = cur.Server
	}
	target := -1
	for i, l := range st.Links {
		if l.Quality != want {
			continue
		}
		if l.Server == server {
			target = i
			break
		}
		if target < 0 {
			target = i
		}
	}
	return c.SelectLink(ctx, target)
}

// SelectSubtitle selects an index of the Off-prefixed subtitle list.
func (c *Coordinator) SelectSubtitle(ctx context.Context, index int) error {
	st := c.store.Snapshot()
	if index < 0 || index >= len(st.Subtitles) {
		return fmt.Errorf("subtitle index %d out of range", index)
	}
	c.mu.Lock()
	c.subtitleChosen = true
	c.mu.Unlock()
	c.store.Update(func(s *State) { s.SubtitleIndex = index })

	if st.Phase.Loaded() {
		if err := c.opts.Engine.SelectSubtitle(ctx, index); err != nil {
			return c.engineError(err)
		}
	}
	c.message("Subtitle: " + subtitle.Labels(st.Subtitles)[index])
	return nil
}

// SelectAudio selects an index of State.Audio.
func (c *Coordinator) SelectAudio(ctx context.Context, index int) error {
	st := c.store.Snapshot()
	if index < 0 || index >= len(st.Audio) {
		return fmt.Errorf("audio index %d out of range", index)
	}
	c.mu.Lock()
	c.audioChosen = true
	c.mu.Unlock()
	if err := c.opts.Engine.SelectAudio(ctx, st.Audio[index].ID); err != nil {
		return c.engineError(err)
	}
	c.store.Update(func(s *State) { s.AudioIndex = index })
	return nil
}

// SetSubtitleOffset shifts subtitles by offsetMs (positive delays them).
func (c *Coordinator) SetSubtitleOffset(ctx context.Context, offsetMs int64) error {
	st := c.store.Update(func(s *State) { s.SubtitleOffsetMs = offsetMs })
	if st.Phase.Loaded() {
		if err := c.opts.Engine.SetSubtitleDelay(ctx, offsetMs); err != nil {
			return c.engineError(err)
		}
	}
	c.message(fmt.Sprintf("Subtitle offset: %+.1fs", float64(offsetMs)/1000))
	return nil
}

// Seek moves playback to positionMs, clamped to the known duration.
func (c *Coordinator) Seek(ctx context.Context, positionMs int64) error {
	st := c.store.Snapshot()
	if !st.Phase.Loaded() {
		return ErrNotLoaded
	}
	if positionMs < 0 {
		positionMs = 0
	}
	if st.DurationMs > 0 && positionMs > st.DurationMs {
		positionMs = st.DurationMs
	}
	if err := c.opts.Engine.Seek(ctx, positionMs); err != nil {
		return c.engineError(err)
	}
	c.store.Update(func(s *State) {
		s.PositionMs = positionMs
		if s.Phase == Ended && (s.DurationMs == 0 || positionMs < s.DurationMs) {
			s.Phase = Playing
		}
	})
	return nil
}

// Play resumes playback.
func (c *Coordinator) Play(ctx context.Context) error { return c.setPaused(ctx, false) }

// Pause pauses playback.
func (c *Coordinator) Pause(ctx context.Context) error { return c.setPaused(ctx, true) }

// TogglePlay pauses when playing and plays otherwise.
func (c *Coordinator) TogglePlay(ctx context.Context) error {
	return c.setPaused(ctx, c.store.Snapshot().Phase == Playing)
}

func (c *Coordinator) setPaused(ctx context.Context, paused bool) error {
	st := c.store.Snapshot()
	if !st.Phase.Loaded() {
		return ErrNotLoaded
	}
	if err := c.opts.Engine.SetPaused(ctx, paused); err != nil {
		return c.engineError(err)
	}
	to := Playing
	if paused {
		to = Paused
	}
	_, err := c.store.Transition(to, nil)
	if paused {
		c.report(st, true)
	}
	return err
}

// SetPiP records whether playback is in picture-in-picture mode, which
// suppresses end-of-episode signals.
func (c *Coordinator) SetPiP(on bool) {
	c.store.Update(func(s *State) { s.PiP = on })
}

// Retry repeats the last request after a failure.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	req := c.lastReq
	c.mu.Unlock()

	if c.store.Snapshot().Phase != Failed {
		return &TransitionError{From: c.store.Snapshot().Phase, To: Preparing}
	}
	return c.Load(ctx, req)
}

// Reset cancels any load in flight and returns to Idle.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.seq++
	c.lastReq = Request{}
	c.baseline = 0
	c.subtitleChosen = false
	c.audioChosen = false
	c.nearEnd.Reset()
	c.mu.Unlock()

	c.store.Transition(Idle, func(s *State) { *s = State{PiP: s.PiP} })
}

// Close reports final progress, stops the engine and closes subscribers.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.mu.Unlock()

	c.report(c.store.Snapshot(), true)
	err := c.opts.Engine.Close()
	c.store.Transition(Idle, nil)
	c.store.Close()
	return err
}

// Run polls the engine until ctx is cancelled or the player exits.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.report(c.store.Snapshot(), true)
			return ctx.Err()
		case <-ticker.C:
			if err := c.poll(ctx); err != nil {
				if errors.Is(err, player.ErrClosed) {
					c.log.Info().Msg("Player exited")
					return nil
				}
				return err
			}
		}
	}
}

// poll reads the engine status once and updates the session.
func (c *Coordinator) poll(ctx context.Context) error {
	st := c.store.Snapshot()
	if !st.Phase.Loaded() {
		return nil
	}

	status, err := c.opts.Engine.Status(ctx)
	if err != nil {
		if errors.Is(err, player.ErrClosed) {
			c.report(st, true)
			return err
		}
		c.log.Debug().Err(err).Msg("Status poll failed")
		return nil
	}

	next := c.store.Update(func(s *State) {
		if s.Phase != st.Phase || s.LoadedURL != st.LoadedURL {
			return
		}
		s.Untracked = status.Untracked
		s.Buffering = status.Buffering
		if !status.Untracked {
			s.PositionMs = status.PositionMs
			s.DurationMs = status.DurationMs
		}
		if len(status.AudioTracks) > 0 {
			s.Audio = status.AudioTracks
		}

		to := s.Phase
		switch {
		case status.Untracked:
			if s.Phase == Ready {
				to = Playing
			}
		case status.Ended || (status.DurationMs > 0 && status.PositionMs >= status.DurationMs):
			to = Ended
		case status.Paused:
			to = Paused
		default:
			to = Playing
		}
		if s.Phase.CanTransition(to) {
			s.Phase = to
		}
	})

	c.selectDefaultAudio(ctx, next)
	c.report(next, next.Phase != st.Phase && (next.Phase == Paused || next.Phase == Ended))

	if next.Phase != Playing && next.Phase != Ended {
		return nil
	}
	c.mu.Lock()
	signals := c.nearEnd.Evaluate(NearEndInput{
		PositionMs:  next.PositionMs,
		DurationMs:  next.DurationMs,
		TV:          next.Film.Type == media.TV && next.Film.Episode != nil,
		LastEpisode: next.Film.LastEpisode,
		PiP:         next.PiP,
	})
	c.mu.Unlock()
	for _, sig := range signals {
		switch sig.Kind {
		case SignalPrefetch:
			if h := c.opts.Hooks.OnPrefetchNext; h != nil {
				h(next.Film)
			}
		case SignalCountdown:
			c.message(sig.Message())
		case SignalLoadingNext:
			c.message(sig.Message())
			if h := c.opts.Hooks.OnLoadNext; h != nil {
				h(next.Film)
			}
		}
	}
	return nil
}

func (c *Coordinator) selectDefaultAudio(ctx context.Context, st State) {
	if len(st.Audio) == 0 || c.opts.AudioLanguage == "" {
		return
	}
	c.mu.Lock()
	if c.audioChosen {
		c.mu.Unlock()
		return
	}
	c.audioChosen = true
	c.mu.Unlock()

	idx := track.AudioIndex(st.Audio, c.opts.AudioLanguage)
	if err := c.opts.Engine.SelectAudio(ctx, st.Audio[idx].ID); err != nil {
		c.log.Debug().Err(err).Msg("Default audio selection failed")
		return
	}
	c.store.Update(func(s *State) { s.AudioIndex = idx })
}

// report sends the position to OnProgress when it moved far enough since
// the last report, or always when force is set.
func (c *Coordinator) report(st State, force bool) {
	h := c.opts.Hooks.OnProgress
	if h == nil || st.Film.ID == "" || st.Untracked || (st.PositionMs <= 0 && st.DurationMs <= 0) {
		return
	}
	c.mu.Lock()
	delta := st.PositionMs - c.lastReportedMs
	if delta < 0 {
		delta = -delta
	}
	if !force && delta < progressStepMs {
		c.mu.Unlock()
		return
	}
	c.lastReportedMs = st.PositionMs
	c.mu.Unlock()

	h(st.Film, st.PositionMs, st.DurationMs)
}

// Title is the engine window title for a film or episode.
func Title(f media.Film) string {
	if f.Episode == nil {
		return f.Title
	}
	t := fmt.Sprintf("%s S%02dE%02d", f.Title, f.Episode.Season, f.Episode.Number)
	if f.Episode.Title != "" {
		t += " - " + f.Episode.Title
	}
	return t
}

func preferredLink(links []media.Stream, quality string) int {
	if quality == "" {
		return 0
	}
	for i, l := range links {
		if l.Quality == quality {
			return i
		}
	}
	return 0
}

func qualityIndex(links []media.Stream, linkIndex int) int {
	if linkIndex < 0 || linkIndex >= len(links) {
		return 0
	}
	for i, q := range Qualities(links) {
		if q == links[linkIndex].Quality {
			return i
		}
	}
	return 0
}

func realSubtitles(withOff []media.Subtitle) []media.Subtitle {
	if len(withOff) <= 1 {
		return nil
	}
	return withOff[1:]
}

func linkLabel(l media.Stream) string {
	switch {
	case l.Server != "" && l.Quality != "":
		return fmt.Sprintf("%s (%s)", l.Server, l.Quality)
	case l.Server != "":
		return l.Server
	default:
		return "link"
	}
}
