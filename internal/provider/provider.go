// Package provider defines the interface for media content providers
// and their implementations.
package provider

import (
	"context"

	"flixclusive/internal/media"
)

// Sources is what a server resolves to: playable links and subtitles.
type Sources struct {
	Streams   []media.Stream
	Subtitles []media.Subtitle
}

// Provider is the interface that content providers must implement.
type Provider interface {
	Name() string

	// Search returns matching results for a query.
	Search(ctx context.Context, query string) ([]media.SearchResult, error)

	// GetDetails returns metadata for a content item.
	GetDetails(ctx context.Context, id string) (*media.Details, error)

	// GetSeasons returns available seasons for a TV show.
	GetSeasons(ctx context.Context, id string) ([]media.Season, error)

	// GetEpisodes returns episodes for a given season.
	GetEpisodes(ctx context.Context, season media.Season) ([]media.Episode, error)

	// GetServers returns available streaming servers.
	// For movies, episodeID is empty.
	GetServers(ctx context.Context, id, episodeID string) ([]media.Server, error)

	// GetSources resolves a server into stream links and subtitles.
	GetSources(ctx context.Context, serverID string) (*Sources, error)

	// Trending returns trending content.
	Trending(ctx context.Context, mediaType media.MediaType) ([]media.SearchResult, error)

	// Recent returns recently added content.
	Recent(ctx context.Context, mediaType media.MediaType) ([]media.SearchResult, error)
}
