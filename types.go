package livetl

// MarkerState is the per-element translation state stored on the element.
type MarkerState string

const (
	// MarkerUntranslated means the element has not been visited yet.
	MarkerUntranslated MarkerState = ""
	// MarkerChecked means the element was visited and nothing in it matched.
	MarkerChecked MarkerState = "checked"
	// MarkerTranslated means at least one fragment of the element was rewritten.
	MarkerTranslated MarkerState = "translated"
)

// Done reports whether an element in this state is skipped on later scans
// while its content is unchanged.
func (s MarkerState) Done() bool {
	return s == MarkerChecked || s == MarkerTranslated
}

const (
	// MarkerAttr holds the MarkerState of an element.
	MarkerAttr = "data-livetl"
	// SignatureAttr holds the content signature recorded when the marker was set.
	SignatureAttr = "data-livetl-sig"
	// NoTranslateAttr excludes an element and its subtree from translation.
	NoTranslateAttr = "data-no-translate"
)

// MatchKind describes how a resolution was produced.
type MatchKind string

const (
	MatchNone    MatchKind = "none"
	MatchExact   MatchKind = "exact"
	MatchFolded  MatchKind = "folded"
	MatchPartial MatchKind = "partial"
)

// Resolution is the outcome of resolving one fragment.
// Found is false for "no match", which is distinct from a translation that
// happens to equal its input.
type Resolution struct {
	Text  string    `json:"text,omitempty"`
	Found bool      `json:"found"`
	Kind  MatchKind `json:"kind"`
}

// NoMatch is the explicit "no match" resolution.
var NoMatch = Resolution{Kind: MatchNone}

// ResolveOptions carries the per-context switches for one resolution.
type ResolveOptions struct {
	AllowPartial bool
}

// IgnoredTags contains HTML tags whose content should not be translated.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
}

// MaxFoldedKeyLength is the longest key (in runes) that gets case-folded variants.
const MaxFoldedKeyLength = 100

// DefaultPlaceholderPrefix marks dictionary values that are not translated yet.
const DefaultPlaceholderPrefix = "待翻译"
