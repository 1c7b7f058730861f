package prune

import (
	"sort"
	"strings"

	glob "github.com/bmatcuk/doublestar/v4"
)

// ResolveImageNames expands the requested name patterns against the
// account's package catalogue. Matching is case-sensitive shell style;
// duplicates collapse and names are trimmed before comparison.
func ResolveImageNames(requested, available []string) []string {
	matched := make(map[string]struct{})

	for _, pattern := range requested {
		pattern = strings.TrimSpace(pattern)

		for _, name := range available {
			name = strings.TrimSpace(name)

			if ok, err := glob.Match(pattern, name); err == nil && ok {
				matched[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
