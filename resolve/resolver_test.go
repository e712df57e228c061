package resolve

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/cache"
	"github.com/ZaguanLabs/livetl/dictionary"
)

var (
	exactOnly   = livetl.ResolveOptions{}
	withPartial = livetl.ResolveOptions{AllowPartial: true}
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, m map[string]string) *dictionary.Store {
	t.Helper()
	s := dictionary.NewStore(dictionary.WithLogger(quiet()))
	if err := s.Rebuild(dictionary.FromMap(m)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	return s
}

func newResolver(t *testing.T, m map[string]string, opts ...Option) (*Resolver, *cache.Memory) {
	t.Helper()
	c := cache.NewMemory(100, cache.WithLogger(quiet()))
	opts = append([]Option{WithCache(c), WithLogger(quiet())}, opts...)
	return New(newStore(t, m), opts...), c
}

func TestResolve_ScenarioA_TrimmedExact(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"Pull requests": "拉取请求"})

	got := r.Resolve(" Pull requests ", exactOnly)
	if !got.Found || got.Text != "拉取请求" || got.Kind != livetl.MatchExact {
		t.Errorf("Resolve = %+v", got)
	}
}

func TestResolve_ScenarioB_ExactBeatsPartial(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"Star": "标星", "Stars": "星标数"})

	got := r.Resolve("Star", withPartial)
	if got.Text != "标星" || got.Kind != livetl.MatchExact {
		t.Errorf("Resolve = %+v, want exact 标星", got)
	}
}

func TestResolve_ScenarioC_Partial(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"Issues": "问题"})

	got := r.Resolve("Open Issues (3)", withPartial)
	if !got.Found || got.Text != "Open 问题 (3)" || got.Kind != livetl.MatchPartial {
		t.Errorf("Resolve = %+v", got)
	}

	if got := r.Resolve("Open Issues (3)", exactOnly); got.Found {
		t.Errorf("partial matching disabled, got %+v", got)
	}
}

func TestResolve_EveryKeyResolves(t *testing.T) {
	dict := map[string]string{
		"Pull requests": "拉取请求",
		"Star":          "标星",
		"Code":          "代码",
		"Watch":         livetl.DefaultPlaceholderPrefix,
		"Fork":          "复刻",
	}
	r, _ := newResolver(t, dict)

	for key, value := range dict {
		got := r.Resolve(key, exactOnly)
		if strings.HasPrefix(value, livetl.DefaultPlaceholderPrefix) {
			if got.Found {
				t.Errorf("placeholder %q should not resolve", key)
			}
			continue
		}
		if got.Text != value {
			t.Errorf("Resolve(%q) = %+v, want %q", key, got, value)
		}
	}
}

func TestResolve_CaseFolded(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"Pull requests": "拉取请求"})

	for _, text := range []string{"PULL REQUESTS", "pull requests"} {
		got := r.Resolve(text, exactOnly)
		if got.Text != "拉取请求" || got.Kind != livetl.MatchFolded {
			t.Errorf("Resolve(%q) = %+v", text, got)
		}
	}
}

func TestResolve_NoDoubleTranslation(t *testing.T) {
	r, _ := newResolver(t, map[string]string{
		"Pull requests": "拉取请求",
		"Issues":        "问题",
	})

	first := r.Resolve("Pull requests", withPartial)
	again := r.Resolve(first.Text, withPartial)
	if again.Found {
		t.Errorf("translated output resolved again: %+v", again)
	}

	partial := r.Resolve("Open Issues (3)", withPartial)
	if again := r.Resolve(partial.Text, withPartial); again.Found {
		t.Errorf("partially translated output resolved again: %+v", again)
	}
}

func TestResolve_CachedAgreesWithFresh(t *testing.T) {
	dict := map[string]string{"Star": "标星", "Issues": "问题"}
	texts := []string{"Star", "STAR", "Open Issues (3)", "nothing here", "Issues"}

	cached, _ := newResolver(t, dict)
	fresh := New(newStore(t, dict), WithLogger(quiet()))

	for _, text := range texts {
		for _, opts := range []livetl.ResolveOptions{exactOnly, withPartial} {
			first := cached.Resolve(text, opts)
			second := cached.Resolve(text, opts)
			uncached := fresh.Resolve(text, opts)
			if first != second || first != uncached {
				t.Errorf("Resolve(%q, %+v): first=%+v cached=%+v fresh=%+v", text, opts, first, second, uncached)
			}
		}
	}
}

func TestResolve_CachesNoMatch(t *testing.T) {
	r, c := newResolver(t, map[string]string{"Star": "标星"})

	r.Resolve("unknown words", withPartial)
	if c.Len() != 1 {
		t.Fatalf("no-match should be cached, Len() = %d", c.Len())
	}

	r.Resolve("unknown words", withPartial)
	snap := r.Stats().Snapshot()
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
}

func TestResolve_MinTextLength(t *testing.T) {
	r, c := newResolver(t, map[string]string{"OK": "好"}, WithMinTextLength(3))

	if got := r.Resolve("OK", exactOnly); got.Found {
		t.Errorf("fragment below minimum length resolved: %+v", got)
	}
	if got := r.Resolve("   ", exactOnly); got.Found {
		t.Error("blank fragment resolved")
	}
	if c.Len() != 0 {
		t.Error("rejected fragments should not be cached")
	}
}

func TestResolve_MaxCacheableLength(t *testing.T) {
	r, c := newResolver(t, map[string]string{"Star": "标星"}, WithMaxCacheableLength(10))

	r.Resolve("this fragment is too long to cache", exactOnly)
	r.Resolve("Star", exactOnly)

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want only the short fragment cached", c.Len())
	}
}

func TestResolve_SeparateCacheEntriesPerPartialSetting(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"Issues": "问题"})

	if got := r.Resolve("Open Issues (3)", exactOnly); got.Found {
		t.Fatalf("exact-only resolution should miss, got %+v", got)
	}
	if got := r.Resolve("Open Issues (3)", withPartial); !got.Found {
		t.Error("cached exact-only miss must not leak into partial resolution")
	}
}

func TestResolve_RebuildSeenThroughStore(t *testing.T) {
	store := newStore(t, map[string]string{"Star": "标星"})
	r := New(store, WithLogger(quiet()))

	store.Rebuild(dictionary.FromMap(map[string]string{"Star": "星标"}))

	if got := r.Resolve("Star", exactOnly); got.Text != "星标" {
		t.Errorf("Resolve after rebuild = %+v", got)
	}
}

func TestResolve_Forget(t *testing.T) {
	r, c := newResolver(t, map[string]string{"Star": "标星"})

	r.Resolve("Star", exactOnly)
	r.Resolve("Star", withPartial)
	r.Forget("  Star ")

	if c.Len() != 0 {
		t.Errorf("Forget should drop both entries, Len() = %d", c.Len())
	}
}
