package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"flixclusive/internal/media"
	"flixclusive/internal/session"
)

// Resolver adapts a Provider to session.Resolver. It queries every server of
// a film at once so the session can start on whichever answers first and
// switch between them later.
type Resolver struct {
	p Provider
}

func NewResolver(p Provider) *Resolver { return &Resolver{p: p} }

type answer struct {
	index int
	src   *Sources
	err   error
}

// Resolve returns as soon as a server yields links. When req names a server,
// Resolve waits for that server to settle first and puts its links first.
// Servers answering later are appended, and update receives the merged lists
// after each one until ctx is cancelled.
//
// Resolve fails with session.ErrNoSources when no server yields a link and at
// least one server answered, and with the last server error otherwise.
func (r *Resolver) Resolve(ctx context.Context, req session.Request, update func([]media.Stream, []media.Subtitle)) ([]media.Stream, []media.Subtitle, error) {
	servers, err := r.p.GetServers(ctx, req.Film.ID, req.Film.EpisodeID())
	if err != nil {
		return nil, nil, err
	}
	if len(servers) == 0 {
		return nil, nil, session.ErrNoSources
	}
	servers = preferServer(servers, req.Server)

	answers := make(chan answer, len(servers))
	for i, s := range servers {
		go func() {
			src, err := r.p.GetSources(ctx, s.ID)
			answers <- answer{index: i, src: src, err: err}
		}()
	}

	m := &merged{servers: servers, wait: -1, seenSubs: make(map[string]bool)}
	if req.Server != "" && strings.EqualFold(servers[0].Name, req.Server) {
		m.wait = 0
	}
	var early []answer
	for pending := len(servers); pending > 0; pending-- {
		var a answer
		select {
		case a = <-answers:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		early = append(early, a)
		if !m.ready(early) || pending == 1 {
			continue
		}
		// Earlier answers keep server order so the preferred server leads.
		slices.SortFunc(early, func(x, y answer) int { return x.index - y.index })
		for _, e := range early {
			m.add(e)
		}
		links, subs := m.lists()
		go m.follow(ctx, answers, pending-1, update)
		return links, subs, nil
	}

	slices.SortFunc(early, func(x, y answer) int { return x.index - y.index })
	for _, e := range early {
		m.add(e)
	}
	if len(m.links) == 0 {
		if !m.answered && m.lastErr != nil {
			return nil, nil, fmt.Errorf("all %d servers failed: %w", len(servers), m.lastErr)
		}
		return nil, nil, session.ErrNoSources
	}
	links, subs := m.lists()
	return links, subs, nil
}

// merged accumulates server answers. Links are only ever appended so indexes
// handed to the session stay valid.
type merged struct {
	servers  []media.Server
	wait     int
	links    []media.Stream
	subs     []media.Subtitle
	seenSubs map[string]bool
	answered bool
	lastErr  error
}

// ready reports whether the answers so far are enough to start playback.
func (m *merged) ready(answers []answer) bool {
	waited := m.wait < 0
	hasLinks := false
	for _, a := range answers {
		if a.index == m.wait {
			waited = true
		}
		if a.err == nil && a.src != nil && len(a.src.Streams) > 0 {
			hasLinks = true
		}
	}
	return waited && hasLinks
}

// add merges one answer and reports whether the lists changed.
func (m *merged) add(a answer) bool {
	server := m.servers[a.index]
	if errors.Is(a.err, ErrEmbedOnly) {
		m.answered = true
		return false
	}
	if a.err != nil {
		log.Debug().Err(a.err).Str("server", server.Name).Msg("Server failed")
		m.lastErr = a.err
		return false
	}
	m.answered = true
	if a.src == nil {
		return false
	}
	changed := false
	for _, st := range a.src.Streams {
		st.Server = server.Name
		m.links = append(m.links, st)
		changed = true
	}
	for _, sub := range a.src.Subtitles {
		if m.seenSubs[sub.URL] {
			continue
		}
		m.seenSubs[sub.URL] = true
		m.subs = append(m.subs, sub)
		changed = true
	}
	return changed
}

func (m *merged) lists() ([]media.Stream, []media.Subtitle) {
	return slices.Clone(m.links), slices.Clone(m.subs)
}

// follow merges the remaining answers, passing the lists to update whenever
// they grow.
func (m *merged) follow(ctx context.Context, answers <-chan answer, pending int, update func([]media.Stream, []media.Subtitle)) {
	for ; pending > 0; pending-- {
		var a answer
		select {
		case a = <-answers:
		case <-ctx.Done():
			return
		}
		if !m.add(a) || update == nil {
			continue
		}
		log.Debug().Str("server", m.servers[a.index].Name).Int("links", len(m.links)).Msg("Late server answered")
		update(m.lists())
	}
}

func preferServer(servers []media.Server, name string) []media.Server {
	if name == "" {
		return servers
	}
	out := make([]media.Server, 0, len(servers))
	for _, s := range servers {
		if strings.EqualFold(s.Name, name) {
			out = append(out, s)
		}
	}
	for _, s := range servers {
		if !strings.EqualFold(s.Name, name) {
			out = append(out, s)
		}
	}
	return out
}
