package watchmode

import (
	"strings"

	"github.com/mozillazg/go-unidecode"

	"streamwise/models"
)

// sourceAliases canonicalizes known aliases of the same underlying service
// to one display name. Keys are alias lookup keys (see aliasKey); canonical
// names themselves must not appear as keys, which keeps normalization
// idempotent.
var sourceAliases = map[string]string{
	"hotstar":             "Disney+",
	"disney plus":         "Disney+",
	"disney plus hotstar": "Disney+",
	"hbo max":             "Max",
	"amazon prime video":  "Prime Video",
	"apple tv plus":       "Apple TV+",
	"paramount plus":      "Paramount+",
}

// aliasKey folds a service name for alias lookup: accents transliterated,
// case and surrounding whitespace dropped.
func aliasKey(name string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
}

// NormalizeSourceName maps a service name to its canonical display name.
// Unknown names pass through unchanged.
func NormalizeSourceName(name string) string {
	if canonical, ok := sourceAliases[aliasKey(name)]; ok {
		return canonical
	}
	return name
}

// NormalizeSources canonicalizes every source name in the list. The input
// slice is not modified.
func NormalizeSources(sources []models.Source) []models.Source {
	out := make([]models.Source, len(sources))
	for i, s := range sources {
		s.Name = NormalizeSourceName(s.Name)
		out[i] = s
	}
	return out
}
