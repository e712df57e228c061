// Package engine wires the dictionary, cache, resolver, applier and
// scheduler together for one configuration.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/cache"
	"github.com/ZaguanLabs/livetl/config"
	"github.com/ZaguanLabs/livetl/dictionary"
	"github.com/ZaguanLabs/livetl/dom"
	"github.com/ZaguanLabs/livetl/match"
	"github.com/ZaguanLabs/livetl/processor"
	"github.com/ZaguanLabs/livetl/resolve"
	"github.com/ZaguanLabs/livetl/scheduler"
	"github.com/ZaguanLabs/livetl/source"
)

// Engine owns the shared translation state. Several documents may be
// attached to one engine; they share its dictionary and cache.
type Engine struct {
	cfg        *config.Config
	classifier *config.Classifier
	store      *dictionary.Store
	cache      *cache.Memory
	resolver   *resolve.Resolver
	applier    *processor.Applier
	stats      *livetl.Stats
	logger     *slog.Logger
	yielder    processor.Yielder
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.cfg = cfg
		}
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithYielder sets what runs between batches.
func WithYielder(y processor.Yielder) Option {
	return func(e *Engine) { e.yielder = y }
}

// New creates an engine with an empty dictionary.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    config.Default(),
		stats:  &livetl.Stats{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, &livetl.ConfigError{Message: "invalid configuration", Cause: err}
	}
	classifier, err := config.NewClassifier(e.cfg.Contexts)
	if err != nil {
		return nil, &livetl.ConfigError{Message: "invalid context rules", Cause: err}
	}
	e.classifier = classifier

	prefix := e.cfg.PlaceholderPrefix
	if prefix == "" {
		prefix = livetl.DefaultPlaceholderPrefix
	}
	e.store = dictionary.NewStore(
		dictionary.WithLogger(e.logger),
		dictionary.WithBuildOptions(dictionary.WithPlaceholderPrefix(prefix)),
	)
	e.cache = cache.NewMemory(e.cfg.CacheCapacity, cache.WithLogger(e.logger))
	e.store.OnRebuild(func(*dictionary.Index) { e.cache.Clear() })

	e.resolver = resolve.New(e.store,
		resolve.WithCache(e.cache),
		resolve.WithPartialEngine(match.NewEngine(
			match.WithLogger(e.logger),
			match.WithMatchTimeout(e.cfg.MatchTimeout),
		)),
		resolve.WithStats(e.stats),
		resolve.WithLogger(e.logger),
		resolve.WithMinTextLength(e.cfg.MinTextLength),
		resolve.WithMaxCacheableLength(e.cfg.MaxCacheableLength),
	)

	yielder := e.yielder
	if yielder == nil {
		yielder = processor.FrameYielder{Delay: e.cfg.YieldInterval}
	}
	e.applier = processor.New(e.resolver,
		processor.WithStats(e.stats),
		processor.WithLogger(e.logger),
		processor.WithYielder(yielder),
		processor.WithAttributes(e.cfg.WatchedAttributes...),
		processor.WithIgnoreSelectors(e.cfg.IgnoreSelectors...),
	)
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Cache returns the resolution cache.
func (e *Engine) Cache() *cache.Memory { return e.cache }

// Stats returns a snapshot of the performance counters.
func (e *Engine) Stats() livetl.StatsSnapshot { return e.stats.Snapshot() }

// Dictionary returns the current index.
func (e *Engine) Dictionary() *dictionary.Index { return e.store.Load() }

// LoadDictionary loads every source, later sources overriding earlier keys,
// and rebuilds the index. Malformed entries are skipped. The cache is
// cleared on rebuild.
func (e *Engine) LoadDictionary(ctx context.Context, sources ...source.Source) error {
	entries, errs, err := source.Entries(ctx, sources...)
	if err != nil {
		return err
	}
	return e.rebuild(entries, errs)
}

// SetDictionary rebuilds the index from raw source→target data.
func (e *Engine) SetDictionary(raw map[string]any) error {
	entries, errs := dictionary.FromRaw(raw)
	return e.rebuild(entries, errs)
}

func (e *Engine) rebuild(entries []dictionary.Entry, errs []error) error {
	for _, err := range errs {
		e.logger.Debug("skipping dictionary entry", "error", err)
	}
	if err := e.store.Rebuild(entries); err != nil {
		return err
	}
	if len(entries) == 0 && len(errs) > 0 {
		return &livetl.IndexBuildError{Message: fmt.Sprintf("all %d entries are malformed", len(errs))}
	}
	return nil
}

// Classify returns the context name and tuning for a page path.
func (e *Engine) Classify(path string) (string, config.Tuning) {
	name := e.classifier.Classify(path)
	return name, e.cfg.TuningFor(name)
}

// Resolve translates one fragment using the tuning of the given context.
func (e *Engine) Resolve(text, context string) livetl.Resolution {
	t := e.cfg.TuningFor(context)
	return e.resolver.Resolve(text, livetl.ResolveOptions{AllowPartial: t.PartialMatch})
}

// ResolveWith translates one fragment with explicit options.
func (e *Engine) ResolveWith(text string, opts livetl.ResolveOptions) livetl.Resolution {
	return e.resolver.Resolve(text, opts)
}

// TranslateOnce runs a single pass over the whole document using the
// context of path.
func (e *Engine) TranslateOnce(ctx context.Context, doc *dom.Document, path string) (processor.Result, error) {
	name, t := e.Classify(path)
	elements := processor.Collect(doc, []*html.Node{doc.Root()}, e.cfg.Locators)
	e.logger.Debug("translating document", "context", name, "elements", len(elements))
	return e.applier.With(t.BatchSize, t.PartialMatch).Apply(ctx, doc, elements)
}

// Attach starts a scheduler keeping doc translated for the page at path.
// Callers stop it with Stop.
func (e *Engine) Attach(ctx context.Context, doc *dom.Document, path string, opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	opts = append([]scheduler.Option{scheduler.WithLogger(e.logger)}, opts...)
	s, err := scheduler.New(doc, e.applier, e.cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}
