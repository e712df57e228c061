// Package config holds the engine configuration: page-context rules, the
// per-context tuning table, locators and selector lists.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/livetl"
)

// DefaultContext is the context used when no rule matches.
const DefaultContext = "default"

// Config is the complete engine configuration.
type Config struct {
	// PlaceholderPrefix marks dictionary values that are not translated yet.
	PlaceholderPrefix string `yaml:"placeholder_prefix" toml:"placeholder_prefix"`
	// CacheCapacity is the resolution cache size.
	CacheCapacity int `yaml:"cache_capacity" toml:"cache_capacity"`
	// MinTextLength is the shortest fragment, in runes, worth resolving.
	MinTextLength int `yaml:"min_text_length" toml:"min_text_length"`
	// MaxCacheableLength is the longest fragment, in runes, whose outcome is cached.
	MaxCacheableLength int `yaml:"max_cacheable_length" toml:"max_cacheable_length"`
	// MatchTimeout bounds one partial-match pattern evaluation.
	MatchTimeout time.Duration `yaml:"match_timeout" toml:"match_timeout"`
	// PollInterval is the polling period used when observers cannot attach.
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	// YieldInterval is the pause between batches of one pass.
	YieldInterval time.Duration `yaml:"yield_interval" toml:"yield_interval"`

	Locators Locators `yaml:"locators" toml:"locators"`

	// IgnoreSelectors mark containers whose content is never translated and
	// whose mutations are dropped.
	IgnoreSelectors []string `yaml:"ignore_selectors" toml:"ignore_selectors"`
	// ImportantSelectors mark elements whose appearance triggers translation
	// immediately.
	ImportantSelectors []string `yaml:"important_selectors" toml:"important_selectors"`
	// WatchedAttributes are translated like text and invalidate markers when changed.
	WatchedAttributes []string `yaml:"watched_attributes" toml:"watched_attributes"`

	// Contexts classify page paths, most specific rule first.
	Contexts []ContextRule `yaml:"contexts" toml:"contexts"`
	// Default is the tuning used by contexts without their own entry.
	Default Tuning `yaml:"default" toml:"default"`
	// Tuning holds per-context tuning keyed by context name.
	Tuning map[string]Tuning `yaml:"tuning" toml:"tuning"`
}

// Locators list the selectors of translatable regions.
type Locators struct {
	// Primary regions are searched within the observed roots.
	Primary []string `yaml:"primary" toml:"primary"`
	// Transient regions (popovers, dialogs) are searched document-wide.
	Transient []string `yaml:"transient" toml:"transient"`
}

// ContextRule maps a path pattern to a context name.
type ContextRule struct {
	Name    string `yaml:"name" toml:"name"`
	Pattern string `yaml:"pattern" toml:"pattern"`
}

// Tuning holds the parameters tuned per page context.
type Tuning struct {
	// BatchSize is the number of elements processed per scheduling quantum.
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
	// PartialMatch enables substring translation.
	PartialMatch bool `yaml:"partial_match" toml:"partial_match"`
	// FastPathThreshold is the batch size under which records are inspected one by one.
	FastPathThreshold int `yaml:"fast_path_threshold" toml:"fast_path_threshold"`
	// MaxInspect caps the records inspected on the slow path.
	MaxInspect int `yaml:"max_inspect" toml:"max_inspect"`
	// ContentWeight and ImportanceWeight weigh the slow-path score.
	ContentWeight    float64 `yaml:"content_weight" toml:"content_weight"`
	ImportanceWeight float64 `yaml:"importance_weight" toml:"importance_weight"`
	// TriggerRatio is the score per inspected record above which translation runs.
	TriggerRatio float64 `yaml:"trigger_ratio" toml:"trigger_ratio"`
	// Complex contexts multiply the throttle interval.
	Complex bool `yaml:"complex" toml:"complex"`
	// Roots are root-container candidates, narrowest first. The document is
	// always the final fallback.
	Roots []string `yaml:"roots" toml:"roots"`

	Debounce          time.Duration `yaml:"debounce" toml:"debounce"`
	MaxDebounce       time.Duration `yaml:"max_debounce" toml:"max_debounce"`
	Throttle          time.Duration `yaml:"throttle" toml:"throttle"`
	ComplexMultiplier float64       `yaml:"complex_multiplier" toml:"complex_multiplier"`
}

// ThrottleInterval returns the minimum interval between passes.
func (t Tuning) ThrottleInterval() time.Duration {
	if t.Complex && t.ComplexMultiplier > 1 {
		return time.Duration(float64(t.Throttle) * t.ComplexMultiplier)
	}
	return t.Throttle
}

// withDefaults fills unset numeric fields from base.
func (t Tuning) withDefaults(base Tuning) Tuning {
	if t.BatchSize <= 0 {
		t.BatchSize = base.BatchSize
	}
	if t.FastPathThreshold <= 0 {
		t.FastPathThreshold = base.FastPathThreshold
	}
	if t.MaxInspect <= 0 {
		t.MaxInspect = base.MaxInspect
	}
	if t.ContentWeight <= 0 {
		t.ContentWeight = base.ContentWeight
	}
	if t.ImportanceWeight <= 0 {
		t.ImportanceWeight = base.ImportanceWeight
	}
	if t.TriggerRatio <= 0 {
		t.TriggerRatio = base.TriggerRatio
	}
	if len(t.Roots) == 0 {
		t.Roots = base.Roots
	}
	if t.Debounce <= 0 {
		t.Debounce = base.Debounce
	}
	if t.MaxDebounce <= 0 {
		t.MaxDebounce = base.MaxDebounce
	}
	if t.MaxDebounce < t.Debounce {
		t.MaxDebounce = t.Debounce
	}
	if t.Throttle <= 0 {
		t.Throttle = base.Throttle
	}
	if t.ComplexMultiplier <= 0 {
		t.ComplexMultiplier = base.ComplexMultiplier
	}
	return t
}

// TuningFor returns the tuning of a context, falling back to Default.
func (c *Config) TuningFor(context string) Tuning {
	base := c.Default.withDefaults(builtinTuning)
	if t, ok := c.Tuning[context]; ok {
		return t.withDefaults(base)
	}
	return base
}

// Load reads a YAML or TOML configuration file over the built-in defaults.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - config path is user-provided
	if err != nil {
		return nil, &livetl.ConfigError{Path: path, Message: "reading file", Cause: err}
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, &livetl.ConfigError{Path: path, Message: fmt.Sprintf("unsupported extension %q", ext)}
	}
	if err != nil {
		return nil, &livetl.ConfigError{Path: path, Message: "decoding", Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &livetl.ConfigError{Path: path, Message: "invalid configuration", Cause: err}
	}
	return cfg, nil
}

// PollPeriod returns PollInterval, or DefaultPollInterval when it is unset.
func (c *Config) PollPeriod() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// Validate checks that every context rule compiles and is named and that no
// interval is negative. Zero intervals select the defaults.
func (c *Config) Validate() error {
	if _, err := NewClassifier(c.Contexts); err != nil {
		return err
	}
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"match_timeout", c.MatchTimeout},
		{"poll_interval", c.PollInterval},
		{"yield_interval", c.YieldInterval},
	}
	for _, iv := range intervals {
		if iv.d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", iv.name, iv.d)
		}
	}
	return nil
}
