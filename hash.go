package livetl

import (
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey generates a resolution cache key from a normalized fragment.
// Resolutions with and without partial matching are cached separately.
func CacheKey(text string, allowPartial bool) string {
	if allowPartial {
		return "p:" + text
	}
	return "x:" + text
}

// Signature returns a short content signature over the given parts.
// Parts are separated so that ("ab", "c") and ("a", "bc") differ.
func Signature(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
