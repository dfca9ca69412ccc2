package provider

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"flixclusive/internal/media"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing HTML: %v", err)
	}
	return doc
}

func card(href, title, year string) string {
	return `<div class="flw-item">
  <div class="film-detail">
    <h2 class="film-name"><a href="` + href + `" title="` + title + `">` + title + `</a></h2>
    <div class="fd-infor"><span class="fdi-item">` + year + `</span><span class="fdi-item">HD</span></div>
  </div>
</div>`
}

const searchPage = `<html><body>
<div class="film_list-wrap">` +
	`<div class="flw-item"><h2 class="film-name"><a href="/movie/free-the-exorcist-hd-75043">The Exorcist</a></h2><div class="fd-infor"><span>1973</span><span>122m</span></div></div>` +
	`<div class="flw-item"><h2 class="film-name"><a href="/tv/watch-breaking-bad-39516">Breaking Bad</a></h2><div class="fd-infor"><span>SS 5</span></div></div>` +
	`<div class="flw-item"><h2 class="film-name"><a href="/movie/no-title-1"></a></h2></div>` +
	`</div>
<ul class="pagination">
  <li class="page-item"><a class="page-link" href="/search/exorcist?page=2">2</a></li>
  <li class="page-item"><a class="page-link" title="Last" href="/search/exorcist?page=7">&raquo;</a></li>
</ul>
</body></html>`

func TestParseResults(t *testing.T) {
	doc := parseDoc(t, searchPage)
	results := parseResults(doc.Selection)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "The Exorcist" || results[0].Type != media.Movie || results[0].Year != "1973" {
		t.Errorf("result[0] = %+v", results[0])
	}
	if results[0].ID != "movie/free-the-exorcist-hd-75043" {
		t.Errorf("result[0].ID = %q", results[0].ID)
	}
	if results[1].Title != "Breaking Bad" || results[1].Type != media.TV || results[1].Year != "" {
		t.Errorf("result[1] = %+v", results[1])
	}
	if got := parseLastPage(doc); got != 7 {
		t.Errorf("parseLastPage() = %d, want 7", got)
	}
}

func TestParseResultsKeepsHostileTitlesLiteral(t *testing.T) {
	html := `<div class="film_list-wrap">` +
		card("/movie/x-1", "&#39;; rm -rf / #", "2020") +
		card("/movie/y-2", "$(whoami)", "2021") +
		card("/movie/z-3", "&lt;script&gt;alert(1)&lt;/script&gt;", "2022") +
		`</div>`
	results := parseResults(parseDoc(t, html).Selection)

	want := []string{"'; rm -rf / #", "$(whoami)", "<script>alert(1)</script>"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Title != w {
			t.Errorf("title[%d] = %q, want %q", i, results[i].Title, w)
		}
	}
}

func TestParseTrending(t *testing.T) {
	html := `<div id="trending-movies"><div class="film_list-wrap">` +
		card("/movie/free-dune-part-two-hd-98765", "Dune: Part Two", "2024") +
		card("/movie/free-oppenheimer-hd-98766", "Oppenheimer", "2023") +
		`</div></div><div id="trending-tv"><div class="film_list-wrap">` +
		card("/tv/watch-the-last-of-us-1", "The Last of Us", "2023") +
		`</div></div>`
	doc := parseDoc(t, html)

	movies := parseTrending(doc, media.Movie)
	if len(movies) != 2 || movies[0].Title != "Dune: Part Two" || movies[0].Year != "2024" {
		t.Errorf("movies = %+v", movies)
	}
	tv := parseTrending(doc, media.TV)
	if len(tv) != 1 || tv[0].Type != media.TV {
		t.Errorf("tv = %+v", tv)
	}

	if got := parseTrending(parseDoc(t, searchPage), media.Movie); len(got) != 0 {
		t.Errorf("page without panels gave %d results", len(got))
	}
}

func TestParseDetails(t *testing.T) {
	html := `<div class="detail_page-watch">
  <img class="film-poster-img" src="https://img.example.com/heat.jpg">
  <h2 class="heading-name"><a href="/movie/watch-heat-19">Heat</a></h2>
  <div class="description">  A group of professional bank robbers.  </div>
  <div class="elements">
    <div class="row-line"><span class="type"><strong>Released:</strong></span> 1995-12-15</div>
    <div class="row-line"><span class="type"><strong>Genre:</strong></span> <a href="/genre/action">Action</a>, <a href="/genre/crime">Crime</a></div>
    <div class="row-line"><span class="type"><strong>Duration:</strong></span> 170
      min</div>
  </div>
</div>`
	d := parseDetails(parseDoc(t, html))

	if d.Title != "Heat" || d.Description != "A group of professional bank robbers." {
		t.Errorf("details = %+v", d)
	}
	if d.Released != "1995-12-15" || d.Duration != "170 min" {
		t.Errorf("released = %q duration = %q", d.Released, d.Duration)
	}
	if len(d.Genres) != 2 || d.Genres[1] != "Crime" {
		t.Errorf("genres = %v", d.Genres)
	}
	if d.Poster != "https://img.example.com/heat.jpg" {
		t.Errorf("poster = %q", d.Poster)
	}
}

func TestParseSeasonsAndEpisodes(t *testing.T) {
	seasons := parseSeasons(parseDoc(t, `<div class="dropdown-menu dropdown-menu-model">
  <a data-id="101" class="dropdown-item ss-item" href="#">Season 1</a>
  <a data-id="102" class="dropdown-item ss-item" href="#">Season 2</a>
</div>`))
	if len(seasons) != 2 || seasons[1].Number != 2 || seasons[1].ID != "102" {
		t.Errorf("seasons = %+v", seasons)
	}

	episodes := parseEpisodes(parseDoc(t, `<ul class="nav">
  <li class="nav-item"><a data-id="9001" title="Eps 1: Pilot" class="nav-link eps-item"><strong>Eps 1:</strong> Pilot</a></li>
  <li class="nav-item"><a data-id="9002" title="Eps 2: Cat's in the Bag..." class="nav-link eps-item"><strong>Eps 2:</strong> Cat's in the Bag...</a></li>
  <li class="nav-item"><a class="nav-link">no id</a></li>
</ul>`))
	if len(episodes) != 2 {
		t.Fatalf("got %d episodes, want 2", len(episodes))
	}
	if episodes[0].Number != 1 || episodes[0].Title != "Pilot" || episodes[0].ID != "9001" {
		t.Errorf("episode[0] = %+v", episodes[0])
	}
	if episodes[1].Number != 2 || episodes[1].Title != "Cat's in the Bag..." {
		t.Errorf("episode[1] = %+v", episodes[1])
	}
}

func TestParseServers(t *testing.T) {
	movie := parseServers(parseDoc(t, `<ul>
  <li class="nav-item"><a data-linkid="555" class="nav-link link-item" title="UpCloud"><span>UpCloud</span></a></li>
  <li class="nav-item"><a data-linkid="556" class="nav-link link-item" title="Vidcloud"><span>Vidcloud</span></a></li>
</ul>`))
	if len(movie) != 2 || movie[0].ID != "555" || movie[1].Name != "Vidcloud" {
		t.Errorf("movie servers = %+v", movie)
	}

	episode := parseServers(parseDoc(t, `<div><a data-id="777" class="nav-link link-item" title="Server UpCloud"><i></i>Server UpCloud</a></div>`))
	if len(episode) != 1 || episode[0].ID != "777" || episode[0].Name != "UpCloud" {
		t.Errorf("episode servers = %+v", episode)
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"/movie/free-the-exorcist-hd-75043", "movie/free-the-exorcist-hd-75043"},
		{"/tv/watch-breaking-bad-39516", "tv/watch-breaking-bad-39516"},
		{"/movie/test-123?ref=home", "movie/test-123"},
		{"movie/test", "movie/test"},
	}
	for _, tt := range tests {
		if got := extractID(tt.input); got != tt.want {
			t.Errorf("extractID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNumericID(t *testing.T) {
	tests := []struct {
		input, want string
		wantErr     bool
	}{
		{"movie/free-the-exorcist-hd-75043", "75043", false},
		{"tv/watch-breaking-bad-39516", "39516", false},
		{"no-number-here", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := numericID(tt.input)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("numericID(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func TestFormatDisplayTitle(t *testing.T) {
	tests := []struct {
		result media.SearchResult
		want   string
	}{
		{media.SearchResult{Title: "Inception", Year: "2010", Type: media.Movie}, "Inception (2010) [Movie]"},
		{media.SearchResult{Title: "Breaking Bad", Type: media.TV}, "Breaking Bad [TV]"},
	}
	for _, tt := range tests {
		if got := FormatDisplayTitle(tt.result); got != tt.want {
			t.Errorf("FormatDisplayTitle() = %q, want %q", got, tt.want)
		}
	}
}
