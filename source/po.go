package source

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/leonelquinteros/gotext"

	"github.com/ZaguanLabs/livetl"
)

// PO reads a gettext catalog. Entries with an empty or fuzzy msgstr become
// placeholder values so the page shows they still need translating.
type PO struct {
	Path              string
	PlaceholderPrefix string
}

// NewPO creates a PO source with the default placeholder prefix.
func NewPO(path string) *PO {
	return &PO{Path: path, PlaceholderPrefix: livetl.DefaultPlaceholderPrefix}
}

// Name returns the catalog path.
func (p *PO) Name() string { return p.Path }

// Load reads and parses the catalog.
func (p *PO) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Path) // #nosec G304 - catalog path is user-provided
	if err != nil {
		return nil, &livetl.SourceError{Source: p.Path, Message: "reading catalog", Cause: err}
	}
	return p.parse(data)
}

func (p *PO) parse(data []byte) (map[string]any, error) {
	po := gotext.NewPo()
	po.Parse(data)
	translations := po.GetDomain().GetTranslations()

	prefix := p.PlaceholderPrefix
	if prefix == "" {
		prefix = livetl.DefaultPlaceholderPrefix
	}

	scanned := scanEntries(data)
	out := make(map[string]any, len(translations)+len(scanned))
	for id, tr := range translations {
		if id == "" || tr == nil {
			continue
		}
		value := ""
		if !scanned[id] {
			value = tr.Trs[0]
		}
		if value == "" {
			value = prefix + id
		}
		out[id] = value
	}
	// gotext may leave out entries without a msgstr; they still need a
	// placeholder.
	for id := range scanned {
		if _, ok := out[id]; !ok {
			out[id] = prefix + id
		}
	}
	return out, nil
}

// scanEntries returns every msgid of the catalog, single or multi-line,
// mapped to whether it is flagged "#, fuzzy". gotext does not expose flags.
func scanEntries(data []byte) map[string]bool {
	entries := make(map[string]bool)
	var (
		fuzzy bool
		inID  bool
		id    strings.Builder
	)
	flush := func() {
		if inID && id.Len() > 0 {
			entries[id.String()] = fuzzy
		}
		inID = false
		fuzzy = false
		id.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "#,"):
			if strings.Contains(line, "fuzzy") {
				fuzzy = true
			}
		case strings.HasPrefix(line, "msgid "):
			inID = true
			id.Reset()
			if part, err := strconv.Unquote(strings.TrimPrefix(line, "msgid ")); err == nil {
				id.WriteString(part)
			}
		case strings.HasPrefix(line, `"`) && inID:
			if part, err := strconv.Unquote(line); err == nil {
				id.WriteString(part)
			}
		case strings.HasPrefix(line, "msgid_plural"), strings.HasPrefix(line, "msgstr"):
			flush()
		case line == "":
			inID = false
			fuzzy = false
			id.Reset()
		}
	}
	flush()
	return entries
}
