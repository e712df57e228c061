package dictionary

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ZaguanLabs/livetl"
)

// Store owns the current Index. Readers call Load once per lookup sequence and
// keep using that snapshot; Rebuild swaps a fully built index in one step.
type Store struct {
	current atomic.Pointer[Index]
	logger  *slog.Logger
	opts    []BuildOption

	mu    sync.Mutex
	hooks []func(*Index)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuildOptions sets options passed to every Build.
func WithBuildOptions(opts ...BuildOption) StoreOption {
	return func(s *Store) {
		s.opts = append(s.opts, opts...)
	}
}

// NewStore creates a store holding an empty index.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(Empty())
	return s
}

// Load returns the current index. It never returns nil.
func (s *Store) Load() *Index {
	return s.current.Load()
}

// OnRebuild registers a hook called after every swap with the new index.
func (s *Store) OnRebuild(fn func(*Index)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Rebuild builds a new index from entries and swaps it in. Malformed entries
// are logged and skipped. If the build fails outright, an empty index is
// swapped in and an *livetl.IndexBuildError is returned.
func (s *Store) Rebuild(entries []Entry) (err error) {
	idx, errs := s.build(entries)
	if idx == nil {
		idx = Empty()
		err = &livetl.IndexBuildError{Message: "index build failed", Cause: errs[0]}
	} else if len(entries) > 0 && idx.Len() == 0 && len(errs) == len(entries) {
		err = &livetl.IndexBuildError{Message: fmt.Sprintf("all %d entries are malformed", len(entries))}
	}

	for _, e := range errs {
		s.logger.Debug("skipping dictionary entry", "error", e)
	}

	s.current.Store(idx)
	s.logger.Info("dictionary index rebuilt",
		"keys", idx.Len(),
		"skipped", idx.Skipped(),
		"max_key_length", idx.MaxKeyLength(),
	)

	s.mu.Lock()
	hooks := append([]func(*Index){}, s.hooks...)
	s.mu.Unlock()
	for _, hook := range hooks {
		hook(idx)
	}

	return err
}

func (s *Store) build(entries []Entry) (idx *Index, errs []error) {
	defer func() {
		if r := recover(); r != nil {
			idx = nil
			errs = []error{fmt.Errorf("panic: %v", r)}
		}
	}()
	return Build(entries, s.opts...)
}
