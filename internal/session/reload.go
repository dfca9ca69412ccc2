package session

import "flixclusive/internal/media"

// ReloadInput is what the coordinator knows when new links or subtitles
// arrive.
type ReloadInput struct {
	Links []media.Stream
	// Subtitles is the fetched list, without the Off entry.
	Subtitles    []media.Subtitle
	SelectedLink int
	LoadedURL    string
	// SubtitleBaseline is the Off-inclusive subtitle count last loaded.
	SubtitleBaseline int
}

// ReloadDecision says whether the engine must reload and from where.
type ReloadDecision struct {
	Needed bool
	// NewServer is set when the selected link is not the one loaded.
	NewServer bool
	// Baseline is the subtitle count to remember once the reload is done.
	Baseline int
}

// DecideReload reloads when the selected link's URL differs from the loaded
// one, or when more subtitles are available than were loaded.
func DecideReload(in ReloadInput) ReloadDecision {
	d := ReloadDecision{Baseline: in.SubtitleBaseline}

	if in.SelectedLink >= 0 && in.SelectedLink < len(in.Links) &&
		in.Links[in.SelectedLink].URL != in.LoadedURL {
		d.Needed = true
		d.NewServer = true
	}
	if n := len(in.Subtitles) + 1; n > in.SubtitleBaseline {
		d.Needed = true
		d.Baseline = n
	}
	return d
}

// ResumeAt picks the start position for the reload. A new server is a fresh
// source and resumes from its saved time; a subtitle-only reload keeps the
// live position.
func (d ReloadDecision) ResumeAt(savedTime func() int64, livePositionMs int64) int64 {
	if d.NewServer {
		return savedTime()
	}
	return livePositionMs
}
