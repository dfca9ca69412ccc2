package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"flixclusive/internal/media"
)

func newTestSite(t *testing.T) *FlixHQ {
	t.Helper()
	mux := http.NewServeMux()
	page := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, body)
		})
	}

	page("/search/breaking-bad", `<div class="film_list-wrap">`+card("/tv/watch-breaking-bad-39516", "Breaking Bad", "2008")+`</div>`)
	page("/search/nothing", `<div class="film_list-wrap"></div>`)
	page("/home", `<div id="trending-tv"><div class="film_list-wrap">`+card("/tv/watch-shogun-1", "Shogun", "2024")+`</div></div>`)
	page("/tv-show", `<div class="film_list-wrap">`+card("/tv/watch-new-2", "New Show", "2026")+`</div>`)
	page("/ajax/v2/tv/seasons/39516", `<div class="dropdown-menu-model"><a class="dropdown-item" data-id="101">Season 1</a></div>`)
	page("/ajax/v2/season/episodes/101", `<ul><li class="nav-item"><a data-id="9001" title="Eps 1: Pilot">Eps 1: Pilot</a></li></ul>`)
	page("/ajax/v2/episode/servers/9001", `<a class="link-item" data-id="555"><span>UpCloud</span></a><a class="link-item" data-id="556"><span>Vidcloud</span></a>`)
	page("/ajax/movie/episodes/75043", `<a class="link-item" data-linkid="557"><span>UpCloud</span></a>`)

	mux.HandleFunc("/ajax/episode/sources/555", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			http.Error(w, "missing ajax header", http.StatusForbidden)
			return
		}
		io.WriteString(w, `{
			"sources": [{"file": "https://cdn.example.com/hls/master.m3u8", "type": "hls"}, {"file": "javascript:alert(1)"}],
			"tracks": [
				{"file": "https://subs.example.com/en.vtt", "label": "English", "kind": "captions", "default": true},
				{"file": "https://subs.example.com/thumbs.vtt", "kind": "thumbnails"}
			]
		}`)
	})
	mux.HandleFunc("/ajax/episode/sources/556", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"type": "iframe", "link": "https://embed.example.com/e-1/abc?z=", "sources": [], "tracks": []}`)
	})
	mux.HandleFunc("/ajax/episode/sources/557", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"type": "direct", "link": "https://cdn.example.com/movie.mp4?token=1"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewFlixHQWithClient(srv.URL, srv.Client())
}

func TestFlixHQSearch(t *testing.T) {
	f := newTestSite(t)
	ctx := context.Background()

	results, err := f.Search(ctx, "breaking   bad")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 || results[0].Type != media.TV {
		t.Fatalf("results = %+v", results)
	}
	if want := f.base + "/tv/watch-breaking-bad-39516"; results[0].URL != want {
		t.Errorf("URL = %q, want %q", results[0].URL, want)
	}

	if _, err := f.Search(ctx, "nothing"); err == nil {
		t.Error("expected error for empty results")
	}
}

func TestFlixHQEpisodeFlow(t *testing.T) {
	f := newTestSite(t)
	ctx := context.Background()

	seasons, err := f.GetSeasons(ctx, "tv/watch-breaking-bad-39516")
	if err != nil || len(seasons) != 1 {
		t.Fatalf("GetSeasons() = %+v, %v", seasons, err)
	}
	episodes, err := f.GetEpisodes(ctx, seasons[0])
	if err != nil || len(episodes) != 1 {
		t.Fatalf("GetEpisodes() = %+v, %v", episodes, err)
	}
	if episodes[0].Season != 1 || episodes[0].Number != 1 {
		t.Errorf("episode = %+v", episodes[0])
	}

	servers, err := f.GetServers(ctx, "tv/watch-breaking-bad-39516", episodes[0].ID)
	if err != nil || len(servers) != 2 {
		t.Fatalf("GetServers() = %+v, %v", servers, err)
	}

	src, err := f.GetSources(ctx, servers[0].ID)
	if err != nil {
		t.Fatalf("GetSources() error: %v", err)
	}
	if len(src.Streams) != 1 || src.Streams[0].URL != "https://cdn.example.com/hls/master.m3u8" || src.Streams[0].Quality != "auto" {
		t.Errorf("streams = %+v", src.Streams)
	}
	if len(src.Subtitles) != 1 || src.Subtitles[0].Language != "English" || src.Subtitles[0].Source != media.External {
		t.Errorf("subtitles = %+v", src.Subtitles)
	}

	if _, err := f.GetSources(ctx, servers[1].ID); !errors.Is(err, ErrEmbedOnly) {
		t.Errorf("GetSources(embed) error = %v, want ErrEmbedOnly", err)
	}
}

func TestFlixHQMovieDirectLink(t *testing.T) {
	f := newTestSite(t)
	ctx := context.Background()

	servers, err := f.GetServers(ctx, "movie/free-the-exorcist-hd-75043", "")
	if err != nil || len(servers) != 1 {
		t.Fatalf("GetServers() = %+v, %v", servers, err)
	}
	src, err := f.GetSources(ctx, servers[0].ID)
	if err != nil {
		t.Fatalf("GetSources() error: %v", err)
	}
	if len(src.Streams) != 1 || src.Streams[0].URL != "https://cdn.example.com/movie.mp4?token=1" {
		t.Errorf("streams = %+v", src.Streams)
	}
}

func TestFlixHQListings(t *testing.T) {
	f := newTestSite(t)
	ctx := context.Background()

	trending, err := f.Trending(ctx, media.TV)
	if err != nil || len(trending) != 1 || trending[0].Title != "Shogun" {
		t.Errorf("Trending() = %+v, %v", trending, err)
	}
	recent, err := f.Recent(ctx, media.TV)
	if err != nil || len(recent) != 1 || recent[0].Title != "New Show" {
		t.Errorf("Recent() = %+v, %v", recent, err)
	}
}

func TestFlixHQRejectsBadIDs(t *testing.T) {
	f := NewFlixHQ("flixhq.to")
	ctx := context.Background()
	if _, err := f.GetSources(ctx, "../../etc/passwd"); err == nil {
		t.Error("GetSources accepted a traversal ID")
	}
	if _, err := f.GetServers(ctx, "movie/no-number", ""); err == nil {
		t.Error("GetServers accepted an ID without a numeric part")
	}
	if _, err := f.GetEpisodes(ctx, media.Season{ID: "1;rm"}); err == nil {
		t.Error("GetEpisodes accepted an invalid season ID")
	}
}

func TestPlayable(t *testing.T) {
	tests := map[string]bool{
		"https://cdn.example.com/a.m3u8":         true,
		"https://cdn.example.com/a.MP4?x=1":      true,
		"https://embed.example.com/e-1/abc?z=":   false,
		"https://embed.example.com/watch#a.m3u8": false,
	}
	for u, want := range tests {
		if got := playable(u); got != want {
			t.Errorf("playable(%q) = %v, want %v", u, got, want)
		}
	}
}
