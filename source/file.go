package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/livetl"
)

// File reads a flat source→target mapping from a JSON, YAML or TOML file.
// Files ending in .po are read as gettext catalogs.
type File struct {
	Path string
	// PlaceholderPrefix marks untranslated catalog entries. Empty selects
	// livetl.DefaultPlaceholderPrefix.
	PlaceholderPrefix string
}

// NewFile creates a file source. The format is chosen by extension.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Name returns the file path.
func (f *File) Name() string { return f.Path }

// Load reads and decodes the file.
func (f *File) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path) // #nosec G304 - dictionary path is user-provided
	if err != nil {
		return nil, &livetl.SourceError{Source: f.Path, Message: "reading file", Cause: err}
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(f.Path)); ext {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".po":
		po := &PO{Path: f.Path, PlaceholderPrefix: f.PlaceholderPrefix}
		return po.parse(data)
	default:
		return nil, &livetl.SourceError{Source: f.Path, Message: fmt.Sprintf("unsupported extension %q", ext)}
	}
	if err != nil {
		return nil, &livetl.SourceError{Source: f.Path, Message: "decoding", Cause: err}
	}
	return raw, nil
}
