// Package media defines shared types for the flixclusive application.
package media

import "time"

// MediaType represents whether content is a movie or TV show.
type MediaType int

const (
	Movie MediaType = iota
	TV
)

func (m MediaType) String() string {
	switch m {
	case Movie:
		return "movie"
	case TV:
		return "tv"
	default:
		return "unknown"
	}
}

// ParseMediaType is the inverse of MediaType.String. Unknown values map to Movie.
func ParseMediaType(s string) MediaType {
	if s == "tv" {
		return TV
	}
	return Movie
}

// SearchResult represents a single search result from a provider.
type SearchResult struct {
	ID    string    // Provider-specific ID (e.g., "movie/watch-the-exorcist-75043")
	Title string    // Display title
	Type  MediaType // Movie or TV
	Year  string    // Release year
	URL   string    // Full URL to the content page
}

// Season represents a TV show season.
type Season struct {
	Number int
	ID     string // Provider-specific season ID
}

// Episode represents a TV show episode.
type Episode struct {
	Number int
	Season int
	Title  string
	ID     string // Provider-specific episode ID
}

// Server represents a streaming server option.
type Server struct {
	Name string // e.g., "Vidcloud", "UpCloud"
	ID   string // Server/data-id
}

// Stream is a resolved, directly playable link. It is never mutated after
// being fetched; switching provider replaces the whole list.
type Stream struct {
	URL     string
	Server  string // Server label the link came from
	Quality string // e.g., "auto", "1080p"
}

// SubtitleSource distinguishes subtitles muxed into the stream from sidecar files.
type SubtitleSource int

const (
	External SubtitleSource = iota
	Embedded
)

// Subtitle represents a subtitle track.
type Subtitle struct {
	Language string         // e.g., "English" or "en"
	Label    string         // Display label, e.g., "English - SDH"
	URL      string         // URL to the subtitle file (usually VTT), empty when embedded
	Source   SubtitleSource // External file or embedded track
}

// AudioTrack is an audio variant reported by the playback engine.
type AudioTrack struct {
	ID       int
	Language string
	Label    string
}

// Film identifies what is being played. For episodes, Episode is non-nil.
type Film struct {
	ID      string
	Title   string
	Type    MediaType
	Episode *Episode
	// LastEpisode is true when Episode is the final one of the show.
	LastEpisode bool
}

// EpisodeID returns the episode id, or "" for films.
func (f Film) EpisodeID() string {
	if f.Episode == nil {
		return ""
	}
	return f.Episode.ID
}

// WatchProgress is the persisted resume point for a film or episode.
type WatchProgress struct {
	OwnerID    string
	FilmID     string
	EpisodeID  string
	Title      string
	Type       MediaType
	Season     int
	Episode    int
	ElapsedMs  int64
	DurationMs int64
	Finished   bool
	UpdatedAt  time.Time
}

// WatchlistItem is a film saved to an owner's watchlist.
type WatchlistItem struct {
	OwnerID string
	FilmID  string
	Title   string
	Type    MediaType
	AddedAt time.Time
}

// Details is the metadata shown before playback.
type Details struct {
	ID          string
	Title       string
	Type        MediaType
	Description string
	Released    string
	Duration    string
	Genres      []string
	Poster      string
}
