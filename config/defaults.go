package config

import (
	"time"

	"github.com/ZaguanLabs/livetl"
)

// DefaultPollInterval is the polling period used when none is configured.
const DefaultPollInterval = 2 * time.Second

var builtinTuning = Tuning{
	BatchSize:         50,
	FastPathThreshold: 10,
	MaxInspect:        50,
	ContentWeight:     1,
	ImportanceWeight:  3,
	TriggerRatio:      0.3,
	Roots:             []string{"main", ".application-main", "body"},
	Debounce:          50 * time.Millisecond,
	MaxDebounce:       250 * time.Millisecond,
	Throttle:          500 * time.Millisecond,
	ComplexMultiplier: 2,
}

// Default returns the built-in configuration, tuned for a GitHub-like site.
func Default() *Config {
	complexTuning := func(roots ...string) Tuning {
		t := builtinTuning
		t.Complex = true
		t.PartialMatch = true
		t.BatchSize = 30
		t.Roots = roots
		return t
	}

	return &Config{
		PlaceholderPrefix:  livetl.DefaultPlaceholderPrefix,
		CacheCapacity:      1500,
		MinTextLength:      1,
		MaxCacheableLength: 500,
		MatchTimeout:       50 * time.Millisecond,
		PollInterval:       DefaultPollInterval,
		YieldInterval:      16 * time.Millisecond,
		Locators: Locators{
			Primary: []string{
				"header", "nav", "main", "footer",
				"#repository-container-header", ".UnderlineNav",
			},
			Transient: []string{
				".Popover", "[role=dialog]", "[role=menu]",
				"[role=tooltip]", ".dropdown-menu",
			},
		},
		IgnoreSelectors: []string{
			".markdown-body", ".blob-code", ".js-file-line",
			"[contenteditable]", "table.diff-table",
		},
		ImportantSelectors: []string{
			"[role=dialog]", ".Popover", "[role=menu]",
			".Box-row", "h1", "h2",
		},
		WatchedAttributes: []string{"title", "aria-label", "placeholder"},
		Contexts: []ContextRule{
			{Name: "dashboard", Pattern: `^/$`},
			{Name: "notifications", Pattern: `^/notifications`},
			{Name: "settings", Pattern: `^/settings`},
			{Name: "search", Pattern: `^/search`},
			{Name: "pull", Pattern: `^/[^/]+/[^/]+/pull/\d+`},
			{Name: "issue", Pattern: `^/[^/]+/[^/]+/issues/\d+`},
			{Name: "compare", Pattern: `^/[^/]+/[^/]+/compare/`},
			{Name: "list", Pattern: `^/[^/]+/[^/]+/(issues|pulls)/?$`},
			{Name: "repository", Pattern: `^/[^/]+/[^/]+`},
		},
		Default: builtinTuning,
		Tuning: map[string]Tuning{
			"pull":    complexTuning("#discussion_bucket", ".pull-request-tab-content", "main", "body"),
			"issue":   complexTuning("#discussion_bucket", ".js-issues-results", "main", "body"),
			"compare": complexTuning(".js-diff-progressive-container", "main", "body"),
			"list": func() Tuning {
				t := builtinTuning
				t.PartialMatch = true
				t.Roots = []string{".js-navigation-container", "main", "body"}
				return t
			}(),
			"dashboard": func() Tuning {
				t := builtinTuning
				t.Throttle = 1 * time.Second
				t.Roots = []string{"#dashboard", "main", "body"}
				return t
			}(),
		},
	}
}
