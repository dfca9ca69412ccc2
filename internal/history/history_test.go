package history

import (
	"context"
	"errors"
	"testing"

	"flixclusive/internal/media"
)

type memStore struct {
	items map[string]*media.WatchProgress
	err   error
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]*media.WatchProgress)}
}

func (m *memStore) GetProgress(_ context.Context, ownerID, filmID, episodeID string) (*media.WatchProgress, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items[ownerID+"|"+filmID+"|"+episodeID], nil
}

func (m *memStore) SaveProgress(_ context.Context, p *media.WatchProgress) error {
	m.items[p.OwnerID+"|"+p.FilmID+"|"+p.EpisodeID] = p
	return nil
}

func TestIsFinished(t *testing.T) {
	tests := []struct {
		elapsed, duration int64
		want              bool
	}{
		{0, 100_000, false},
		{94_000, 100_000, false},
		{96_000, 100_000, true},
		{100_000, 100_000, true},
		{5_000, 0, false},
	}
	for _, tt := range tests {
		if got := IsFinished(tt.elapsed, tt.duration); got != tt.want {
			t.Errorf("IsFinished(%d, %d) = %v, want %v", tt.elapsed, tt.duration, got, tt.want)
		}
	}
}

func TestResumePosition(t *testing.T) {
	if got := ResumePosition(nil); got != 0 {
		t.Errorf("nil record resume = %d, want 0", got)
	}
	if got := ResumePosition(&media.WatchProgress{ElapsedMs: 5000, Finished: true}); got != 0 {
		t.Errorf("finished record resume = %d, want 0", got)
	}
	if got := ResumePosition(&media.WatchProgress{ElapsedMs: 5000, DurationMs: 10_000}); got != 5000 {
		t.Errorf("resume = %d, want 5000", got)
	}
}

func TestFormatForDisplay(t *testing.T) {
	entries := []*media.WatchProgress{
		{Title: "Movie A", Type: media.Movie, ElapsedMs: 500, DurationMs: 1000},
		{Title: "Show B", Type: media.TV, Season: 2, Episode: 5},
		{Title: "Movie C", Type: media.Movie, ElapsedMs: 990, DurationMs: 1000, Finished: true},
	}

	items := FormatForDisplay(entries)
	want := []string{"Movie A [50%]", "Show B S02E05", "Movie C [watched]"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, items[i], want[i])
		}
	}
}

func TestTrackerRoundTrip(t *testing.T) {
	store := newMemStore()
	tr := NewTracker(store, "owner")
	ctx := context.Background()

	film := media.Film{
		ID: "tv/show-1", Title: "Show", Type: media.TV,
		Episode: &media.Episode{ID: "ep-3", Season: 1, Number: 3},
	}
	if got := tr.SavedTime(ctx, film); got != 0 {
		t.Errorf("SavedTime before Record = %d, want 0", got)
	}

	if err := tr.Record(ctx, film, 42_000, 1_200_000); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if got := tr.SavedTime(ctx, film); got != 42_000 {
		t.Errorf("SavedTime = %d, want 42000", got)
	}

	saved := store.items["owner|tv/show-1|ep-3"]
	if saved == nil || saved.Season != 1 || saved.Episode != 3 || saved.Finished {
		t.Errorf("saved record = %+v", saved)
	}
}

func TestTrackerReadErrorFallsBackToStart(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk gone")
	tr := NewTracker(store, "owner")

	if got := tr.SavedTime(context.Background(), media.Film{ID: "movie/1"}); got != 0 {
		t.Errorf("SavedTime on error = %d, want 0", got)
	}
}

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	if got := tr.SavedTime(context.Background(), media.Film{ID: "x"}); got != 0 {
		t.Errorf("nil tracker SavedTime = %d", got)
	}
	if err := tr.Record(context.Background(), media.Film{ID: "x"}, 1, 2); err != nil {
		t.Errorf("nil tracker Record error: %v", err)
	}
}
