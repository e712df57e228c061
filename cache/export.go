package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportFormat represents the JSON structure of a diagnostic cache dump.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Capacity   int               `json:"capacity"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	Key         string `json:"key"`
	Text        string `json:"text,omitempty"`
	Found       bool   `json:"found"`
	Kind        string `json:"kind"`
	AccessCount int    `json:"access_count"`
	LastAccess  string `json:"last_access"`
}

// Exporter writes diagnostic dumps of a cache. Dumps are for inspection only;
// there is no importer because resolutions are never carried across sessions.
type Exporter struct {
	cache *Memory
}

// NewExporter creates a new cache exporter.
func NewExporter(cache *Memory) *Exporter {
	return &Exporter{cache: cache}
}

// Export writes the cache contents to a writer in JSON format.
func (e *Exporter) Export(w io.Writer, metadata map[string]string) error {
	infos := e.cache.Entries()
	entries := make([]ExportEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, ExportEntry{
			Key:         info.Key,
			Text:        info.Value.Text,
			Found:       info.Value.Found,
			Kind:        string(info.Value.Kind),
			AccessCount: info.AccessCount,
			LastAccess:  info.LastAccess.UTC().Format(time.RFC3339Nano),
		})
	}

	export := ExportFormat{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Capacity:   e.cache.Capacity(),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// ExportToFile exports the cache to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (e *Exporter) ExportToFile(path string, metadata map[string]string) error {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return e.Export(f, metadata)
}
