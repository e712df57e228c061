package dictionary

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ZaguanLabs/livetl"
)

func quietStore(opts ...StoreOption) *Store {
	opts = append([]StoreOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewStore(opts...)
}

func TestStore_StartsEmpty(t *testing.T) {
	s := quietStore()
	if s.Load() == nil || s.Load().Len() != 0 {
		t.Error("new store should hold an empty index")
	}
}

func TestStore_RebuildSwaps(t *testing.T) {
	s := quietStore()

	if err := s.Rebuild(FromMap(map[string]string{"Star": "标星"})); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	old := s.Load()

	if err := s.Rebuild(FromMap(map[string]string{"Fork": "复刻"})); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	// A reader holding the old snapshot keeps a consistent view.
	if _, ok := old.Exact("Star"); !ok {
		t.Error("old snapshot lost its entry")
	}
	if _, ok := old.Exact("Fork"); ok {
		t.Error("old snapshot sees entries of the new index")
	}

	cur := s.Load()
	if _, ok := cur.Exact("Star"); ok {
		t.Error("rebuild should replace, not merge")
	}
	if _, ok := cur.Exact("Fork"); !ok {
		t.Error("new index missing entry")
	}
}

func TestStore_Hooks(t *testing.T) {
	s := quietStore()

	var calls int
	var seen *Index
	s.OnRebuild(func(idx *Index) {
		calls++
		seen = idx
	})

	s.Rebuild(FromMap(map[string]string{"Star": "标星"}))

	if calls != 1 {
		t.Errorf("hook called %d times, want 1", calls)
	}
	if seen != s.Load() {
		t.Error("hook should receive the swapped-in index")
	}
}

func TestStore_AllMalformed(t *testing.T) {
	s := quietStore()
	s.Rebuild(FromMap(map[string]string{"Star": "标星"}))

	err := s.Rebuild([]Entry{{Source: "", Target: "x"}, {Source: "Fork", Target: ""}})

	var buildErr *livetl.IndexBuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected IndexBuildError, got %v", err)
	}
	if s.Load().Len() != 0 {
		t.Error("store should fall back to an empty index")
	}
}

func TestStore_PlaceholderOption(t *testing.T) {
	s := quietStore(WithBuildOptions(WithPlaceholderPrefix("TODO:")))
	s.Rebuild(FromMap(map[string]string{"Star": "TODO: Star", "Fork": "复刻"}))

	if s.Load().Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Load().Len())
	}
}
