package cache

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"flixclusive/internal/httputil"
)

// maxSpanBytes is the largest response body the proxy will cache. Larger
// bodies are streamed through untouched.
const maxSpanBytes = 32 * 1024 * 1024

var uriAttr = regexp.MustCompile(`URI="([^"]+)"`)

// Proxy serves media over loopback HTTP, reading segments through a Cache.
// HLS playlists are rewritten so every segment request comes back here.
type Proxy struct {
	cache   *Cache
	client  *http.Client
	headers []httputil.Header

	listener net.Listener
	server   *http.Server
	base     string
}

// NewProxy creates a proxy over c. A nil cache makes the proxy a plain relay.
func NewProxy(c *Cache, client *http.Client, headers ...httputil.Header) *Proxy {
	if client == nil {
		client = httputil.NewClient()
	}
	return &Proxy{cache: c, client: client, headers: headers}
}

// Handler returns the proxy's HTTP routes.
func (p *Proxy) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/media", p.serveMedia)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Start listens on an ephemeral loopback port.
func (p *Proxy) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listening for media proxy: %w", err)
	}
	p.listener = ln
	p.base = "http://" + ln.Addr().String()
	p.server = &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Media proxy stopped")
		}
	}()
	log.Debug().Str("addr", p.base).Msg("Media proxy listening")
	return nil
}

// SetBase points generated URLs at an already running server (tests use httptest).
func (p *Proxy) SetBase(base string) { p.base = strings.TrimRight(base, "/") }

// URL returns the proxied form of an upstream URL.
func (p *Proxy) URL(upstream string) string {
	if p == nil || p.base == "" {
		return upstream
	}
	return p.base + "/media?u=" + url.QueryEscape(upstream)
}

// Close shuts the proxy down.
func (p *Proxy) Close(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}

func (p *Proxy) serveMedia(w http.ResponseWriter, r *http.Request) {
	upstream := r.URL.Query().Get("u")
	if err := httputil.ValidateURL(upstream); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	playlist := isPlaylistPath(upstream)
	ranged := r.Header.Get("Range") != ""

	if !playlist && !ranged {
		if data, ok := p.cache.Get(upstream); ok {
			w.Header().Set("Content-Type", contentTypeFor(upstream))
			w.Header().Set("X-Cache", "HIT")
			w.Write(data)
			return
		}
	}

	headers := p.headers
	if ranged {
		headers = append(append([]httputil.Header{}, headers...), httputil.Header{Key: "Range", Value: r.Header.Get("Range")})
	}
	resp, err := httputil.Get(r.Context(), p.client, upstream, headers...)
	if err != nil {
		log.Debug().Err(err).Str("url", upstream).Msg("Upstream fetch failed")
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		http.Error(w, fmt.Sprintf("upstream status %d", resp.StatusCode), http.StatusBadGateway)
		return
	}

	if playlist || strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "mpegurl") {
		p.servePlaylist(w, upstream, resp)
		return
	}

	copyHeaders(w.Header(), resp.Header, "Content-Type", "Content-Range", "Accept-Ranges")
	if ranged {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			w.Header().Set("Content-Length", cl)
		}
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
		return
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxSpanBytes+1))
	if err != nil {
		http.Error(w, "reading upstream", http.StatusBadGateway)
		return
	}
	w.Header().Set("X-Cache", "MISS")
	if len(buf) > maxSpanBytes {
		w.Write(buf)
		io.Copy(w, resp.Body)
		return
	}

	if err := p.cache.Put(upstream, buf); err != nil {
		log.Warn().Err(err).Str("url", upstream).Msg("Failed to cache span")
	}
	w.Write(buf)
}

func (p *Proxy) servePlaylist(w http.ResponseWriter, upstream string, resp *http.Response) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxBodyBytes))
	if err != nil {
		http.Error(w, "reading playlist", http.StatusBadGateway)
		return
	}
	rewritten, err := p.RewritePlaylist(upstream, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write(rewritten)
}

// RewritePlaylist points every URI in an HLS playlist back at the proxy.
func (p *Proxy) RewritePlaylist(playlistURL string, body []byte) ([]byte, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("parsing playlist URL: %w", err)
	}

	resolve := func(ref string) string {
		u, err := base.Parse(strings.TrimSpace(ref))
		if err != nil {
			return ref
		}
		return p.URL(u.String())
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), httputil.MaxBodyBytes)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "":
		case strings.HasPrefix(line, "#"):
			line = uriAttr.ReplaceAllStringFunc(line, func(m string) string {
				ref := uriAttr.FindStringSubmatch(m)[1]
				return `URI="` + resolve(ref) + `"`
			})
		default:
			line = resolve(line)
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	return out.Bytes(), nil
}

func isPlaylistPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".m3u8")
}

func contentTypeFor(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "application/octet-stream"
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".ts":
		return "video/mp2t"
	case ".m4s", ".mp4":
		return "video/mp4"
	case ".aac":
		return "audio/aac"
	case ".vtt":
		return "text/vtt"
	default:
		return "application/octet-stream"
	}
}

func copyHeaders(dst, src http.Header, keys ...string) {
	for _, k := range keys {
		if v := src.Get(k); v != "" {
			dst.Set(k, v)
		}
	}
}
