// Package source loads raw dictionary data from files, gettext catalogs and
// Redis, with retry and circuit breaking for remote sources.
package source

import (
	"context"

	"github.com/ZaguanLabs/livetl/dictionary"
)

// Source produces raw dictionary data. Values are expected to be strings;
// anything else is reported by dictionary.FromRaw and skipped.
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]any, error)
}

// Entries merges sources and validates the result into dictionary entries.
// Malformed entries are returned as errors alongside the valid ones.
func Entries(ctx context.Context, sources ...Source) ([]dictionary.Entry, []error, error) {
	raw, err := Merge(ctx, sources...)
	if err != nil {
		return nil, nil, err
	}
	entries, errs := dictionary.FromRaw(raw)
	return entries, errs, nil
}

// Merge loads every source in order; later sources override earlier keys.
func Merge(ctx context.Context, sources ...Source) (map[string]any, error) {
	out := make(map[string]any)
	for _, src := range sources {
		raw, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range raw {
			out[k] = v
		}
	}
	return out, nil
}
