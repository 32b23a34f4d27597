// Package traits flattens trait GeoJSON feature collections into a table and
// exports it as CSV.
package traits

import (
	"strings"
	"unicode"
)

// ModelKey is a parsed model-scoped property key such as
// "modelA-v1/3/Flower".
type ModelKey struct {
	Model  string // "modelA/3"
	Column string // "flower_count"
}

// ParseKey splits a property key of the form "<platform>-<tag>/<version>/<trait>".
// The platform is the first token before a hyphen in the first segment. Keys
// that do not have three non-empty segments are plain columns and ok is false.
func ParseKey(key string) (ModelKey, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return ModelKey{}, false
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return ModelKey{}, false
		}
	}
	platform, _, _ := strings.Cut(parts[0], "-")
	if platform == "" {
		return ModelKey{}, false
	}
	return ModelKey{
		Model:  platform + "/" + strings.TrimSpace(parts[1]),
		Column: TraitColumn(parts[2]),
	}, true
}

// TraitColumn normalises a trait name to a count column: lower case, runs of
// other characters folded to '_', and a "_count" suffix.
func TraitColumn(trait string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.TrimSpace(trait) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		sep = true
	}
	name := b.String()
	if name == "" {
		name = "trait"
	}
	if strings.HasSuffix(name, "_count") || name == "count" {
		return name
	}
	return name + "_count"
}
