package provider

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flixclusive/internal/media"
)

// parseResults extracts result cards below sel. Titles are taken from the
// DOM text, never interpolated into anything executable.
func parseResults(sel *goquery.Selection) []media.SearchResult {
	var results []media.SearchResult
	sel.Find(".film_list-wrap .flw-item").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".film-name a")
		r := media.SearchResult{Title: strings.TrimSpace(link.Text())}
		if r.Title == "" {
			r.Title = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if href, ok := link.Attr("href"); ok {
			r.URL = href
			r.ID = extractID(href)
		}
		r.Type = typeFromPath(r.ID)

		s.Find(".fd-infor span").Each(func(_ int, span *goquery.Selection) {
			text := strings.TrimSpace(span.Text())
			if _, err := strconv.Atoi(text); err == nil && len(text) == 4 {
				r.Year = text
			}
		})

		if r.Title != "" {
			results = append(results, r)
		}
	})
	return results
}

// parseTrending scopes result parsing to the trending panel for mediaType.
func parseTrending(doc *goquery.Document, mediaType media.MediaType) []media.SearchResult {
	panel := "#trending-movies"
	if mediaType == media.TV {
		panel = "#trending-tv"
	}
	return parseResults(doc.Find(panel))
}

// parseLastPage returns the highest page number in the pagination block, or 1.
func parseLastPage(doc *goquery.Document) int {
	last := 1
	doc.Find(".pagination a.page-link").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if n, err := strconv.Atoi(u.Query().Get("page")); err == nil && n > last {
			last = n
		}
	})
	return last
}

func parseDetails(doc *goquery.Document) *media.Details {
	d := &media.Details{
		Title:       strings.TrimSpace(doc.Find(".heading-name a").First().Text()),
		Description: strings.TrimSpace(doc.Find(".description").First().Text()),
		Poster:      doc.Find(".film-poster-img").First().AttrOr("src", ""),
	}

	doc.Find(".elements .row-line").Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(s.Find(".type").Text()))
		value := strings.TrimSpace(strings.TrimPrefix(s.Text(), s.Find(".type").Text()))
		switch strings.TrimSuffix(label, ":") {
		case "released":
			d.Released = value
		case "duration":
			d.Duration = strings.Join(strings.Fields(value), " ")
		case "genre":
			s.Find("a").Each(func(_ int, a *goquery.Selection) {
				if g := strings.TrimSpace(a.Text()); g != "" {
					d.Genres = append(d.Genres, g)
				}
			})
		}
	})
	return d
}

// parseSeasons reads the season dropdown. Season numbers come from the
// trailing number of the item text ("Season 2").
func parseSeasons(doc *goquery.Document) []media.Season {
	var seasons []media.Season
	doc.Find(".dropdown-menu-model .dropdown-item").Each(func(_ int, s *goquery.Selection) {
		id := s.AttrOr("data-id", "")
		if id == "" {
			if href, ok := s.Attr("href"); ok {
				id = href[strings.LastIndex(href, "/")+1:]
			}
		}
		if id == "" {
			return
		}
		seasons = append(seasons, media.Season{Number: trailingNumber(s.Text()), ID: id})
	})
	return seasons
}

func parseEpisodes(doc *goquery.Document) []media.Episode {
	var episodes []media.Episode
	doc.Find(".nav-item a[data-id]").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		ep := media.Episode{
			ID:    s.AttrOr("data-id", ""),
			Title: strings.TrimSpace(s.AttrOr("title", "")),
		}
		// Text looks like "Eps 3: Title".
		if head, _, ok := strings.Cut(text, ":"); ok {
			ep.Number = trailingNumber(head)
		}
		if ep.Number == 0 {
			ep.Number = i + 1
		}
		if ep.Title == "" {
			ep.Title = text
		}
		if _, rest, ok := strings.Cut(ep.Title, ":"); ok && strings.HasPrefix(strings.ToLower(ep.Title), "eps") {
			ep.Title = strings.TrimSpace(rest)
		}
		episodes = append(episodes, ep)
	})
	return episodes
}

// parseServers reads server links. Movie pages use data-linkid, episode
// pages use data-id.
func parseServers(doc *goquery.Document) []media.Server {
	var servers []media.Server
	doc.Find(".link-item").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("data-linkid")
		if !ok {
			id, ok = s.Attr("data-id")
		}
		if !ok || id == "" {
			return
		}
		name := strings.TrimSpace(s.Find("span").First().Text())
		if name == "" {
			name = strings.TrimSpace(s.Text())
		}
		name = strings.TrimPrefix(name, "Server ")
		if name == "" {
			name = s.AttrOr("title", "Unknown")
		}
		servers = append(servers, media.Server{Name: name, ID: id})
	})
	return servers
}

// extractID turns a URL path into a content ID:
// "/movie/free-the-exorcist-hd-75043?ref=x" -> "movie/free-the-exorcist-hd-75043".
func extractID(urlPath string) string {
	id := strings.TrimPrefix(urlPath, "/")
	if i := strings.IndexAny(id, "?#"); i != -1 {
		id = id[:i]
	}
	return id
}

// numericID returns the trailing numeric part of a content ID.
func numericID(id string) (string, error) {
	i := strings.LastIndex(id, "-")
	n := id[i+1:]
	if _, err := strconv.Atoi(n); err != nil || n == "" {
		return "", fmt.Errorf("cannot extract numeric ID from %q", id)
	}
	return n, nil
}

func typeFromPath(id string) media.MediaType {
	if strings.HasPrefix(id, "tv/") {
		return media.TV
	}
	return media.Movie
}

func trailingNumber(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(fields[len(fields)-1])
	return n
}

// FormatDisplayTitle creates a display string for selection lists.
func FormatDisplayTitle(r media.SearchResult) string {
	parts := []string{r.Title}
	if r.Year != "" {
		parts = append(parts, fmt.Sprintf("(%s)", r.Year))
	}
	if r.Type == media.TV {
		parts = append(parts, "[TV]")
	} else {
		parts = append(parts, "[Movie]")
	}
	return strings.Join(parts, " ")
}
