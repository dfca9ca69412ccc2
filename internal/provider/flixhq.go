package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flixclusive/internal/httputil"
	"flixclusive/internal/media"
)

// ErrEmbedOnly is returned when a server only offers an embedded player page
// instead of direct stream links.
var ErrEmbedOnly = errors.New("server only provides an embed page")

// FlixHQ implements Provider for the FlixHQ content source.
type FlixHQ struct {
	base   string
	client *http.Client
}

// NewFlixHQ creates a FlixHQ provider. base is a host ("flixhq.to") or a
// full origin URL.
func NewFlixHQ(base string) *FlixHQ {
	return NewFlixHQWithClient(base, httputil.NewClient())
}

// NewFlixHQWithClient is NewFlixHQ with a caller-supplied HTTP client.
func NewFlixHQWithClient(base string, client *http.Client) *FlixHQ {
	base = strings.TrimRight(base, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &FlixHQ{base: base, client: client}
}

func (f *FlixHQ) Name() string { return "flixhq" }

// maxSearchPages limits how many pages of search results to fetch.
const maxSearchPages = 3

// Search returns matching results for a query, fetching up to maxSearchPages pages.
func (f *FlixHQ) Search(ctx context.Context, query string) ([]media.SearchResult, error) {
	searchURL := fmt.Sprintf("%s/search/%s", f.base, httputil.EncodeQuery(query))

	doc, err := f.document(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	results := parseResults(doc.Selection)

	pages := min(parseLastPage(doc), maxSearchPages)
	for page := 2; page <= pages; page++ {
		pageDoc, err := f.document(ctx, fmt.Sprintf("%s?page=%d", searchURL, page))
		if err != nil {
			break
		}
		results = append(results, parseResults(pageDoc.Selection)...)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no results found for %q", query)
	}
	return f.absolute(results), nil
}

// GetDetails fetches the content page for id.
func (f *FlixHQ) GetDetails(ctx context.Context, id string) (*media.Details, error) {
	if err := httputil.ValidateID(id); err != nil {
		return nil, fmt.Errorf("invalid content ID: %w", err)
	}
	doc, err := f.document(ctx, f.base+"/"+id)
	if err != nil {
		return nil, fmt.Errorf("getting details: %w", err)
	}
	d := parseDetails(doc)
	d.ID = id
	d.Type = typeFromPath(id)
	return d, nil
}

func (f *FlixHQ) GetSeasons(ctx context.Context, id string) ([]media.Season, error) {
	numID, err := numericID(id)
	if err != nil {
		return nil, err
	}
	doc, err := f.document(ctx, fmt.Sprintf("%s/ajax/v2/tv/seasons/%s", f.base, numID))
	if err != nil {
		return nil, fmt.Errorf("getting seasons: %w", err)
	}
	return parseSeasons(doc), nil
}

func (f *FlixHQ) GetEpisodes(ctx context.Context, season media.Season) ([]media.Episode, error) {
	if err := httputil.ValidateID(season.ID); err != nil {
		return nil, fmt.Errorf("invalid season ID: %w", err)
	}
	doc, err := f.document(ctx, fmt.Sprintf("%s/ajax/v2/season/episodes/%s", f.base, season.ID))
	if err != nil {
		return nil, fmt.Errorf("getting episodes: %w", err)
	}
	episodes := parseEpisodes(doc)
	for i := range episodes {
		episodes[i].Season = season.Number
	}
	return episodes, nil
}

// GetServers lists servers. Movies are addressed by the numeric part of the
// content ID, episodes by their own ID.
func (f *FlixHQ) GetServers(ctx context.Context, id, episodeID string) ([]media.Server, error) {
	var u string
	if episodeID != "" {
		if err := httputil.ValidateID(episodeID); err != nil {
			return nil, fmt.Errorf("invalid episode ID: %w", err)
		}
		u = fmt.Sprintf("%s/ajax/v2/episode/servers/%s", f.base, episodeID)
	} else {
		numID, err := numericID(id)
		if err != nil {
			return nil, err
		}
		u = fmt.Sprintf("%s/ajax/movie/episodes/%s", f.base, numID)
	}

	doc, err := f.document(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("getting servers: %w", err)
	}
	return parseServers(doc), nil
}

type sourcesResponse struct {
	Type    string `json:"type"`
	Link    string `json:"link"`
	Sources []struct {
		File  string `json:"file"`
		Type  string `json:"type"`
		Label string `json:"label"`
	} `json:"sources"`
	Tracks []struct {
		File    string `json:"file"`
		Label   string `json:"label"`
		Kind    string `json:"kind"`
		Default bool   `json:"default"`
	} `json:"tracks"`
}

// GetSources reads the sources endpoint for a server. Direct links are used
// as-is; an embed link is only accepted when it points at a playable file.
func (f *FlixHQ) GetSources(ctx context.Context, serverID string) (*Sources, error) {
	if err := httputil.ValidateID(serverID); err != nil {
		return nil, fmt.Errorf("invalid server ID: %w", err)
	}

	body, err := httputil.GetJSON(ctx, f.client, fmt.Sprintf("%s/ajax/episode/sources/%s", f.base, serverID))
	if err != nil {
		return nil, fmt.Errorf("getting sources: %w", err)
	}
	var resp sourcesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing sources response: %w", err)
	}

	out := &Sources{}
	for _, s := range resp.Sources {
		if httputil.ValidateURL(s.File) != nil {
			continue
		}
		quality := s.Label
		if quality == "" {
			quality = "auto"
		}
		out.Streams = append(out.Streams, media.Stream{URL: s.File, Quality: quality})
	}
	if len(out.Streams) == 0 && resp.Link != "" {
		if !playable(resp.Link) {
			return nil, fmt.Errorf("server %s: %w", serverID, ErrEmbedOnly)
		}
		out.Streams = append(out.Streams, media.Stream{URL: resp.Link, Quality: "auto"})
	}

	for _, t := range resp.Tracks {
		if t.File == "" || (t.Kind != "" && t.Kind != "captions" && t.Kind != "subtitles") {
			continue
		}
		if httputil.ValidateURL(t.File) != nil {
			continue
		}
		out.Subtitles = append(out.Subtitles, media.Subtitle{
			Language: t.Label,
			Label:    t.Label,
			URL:      t.File,
			Source:   media.External,
		})
	}
	return out, nil
}

// Trending returns trending content from the /home page.
func (f *FlixHQ) Trending(ctx context.Context, mediaType media.MediaType) ([]media.SearchResult, error) {
	doc, err := f.document(ctx, f.base+"/home")
	if err != nil {
		return nil, fmt.Errorf("getting trending: %w", err)
	}
	return f.absolute(parseTrending(doc, mediaType)), nil
}

// Recent returns recently added content from the /movie or /tv-show pages.
func (f *FlixHQ) Recent(ctx context.Context, mediaType media.MediaType) ([]media.SearchResult, error) {
	page := "/movie"
	if mediaType == media.TV {
		page = "/tv-show"
	}
	doc, err := f.document(ctx, f.base+page)
	if err != nil {
		return nil, fmt.Errorf("getting recent: %w", err)
	}
	return f.absolute(parseResults(doc.Selection)), nil
}

func (f *FlixHQ) absolute(results []media.SearchResult) []media.SearchResult {
	for i := range results {
		if results[i].URL != "" && !strings.HasPrefix(results[i].URL, "http") {
			results[i].URL = f.base + results[i].URL
		}
	}
	return results
}

// document fetches a URL and parses it into a goquery Document.
func (f *FlixHQ) document(ctx context.Context, u string) (*goquery.Document, error) {
	resp, err := httputil.Get(ctx, f.client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

func playable(u string) bool {
	p := u
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".m3u8", ".mp4", ".mkv", ".webm":
		return true
	}
	return false
}
