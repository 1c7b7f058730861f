package retention

import (
	glob "github.com/bmatcuk/doublestar/v4"
)

// GlobMatcher matches tags against Unix shell-style patterns
// ('*', '?', '[seq]', '[!seq]'), case-sensitively.
type GlobMatcher struct{}

func NewGlobMatcher() *GlobMatcher {
	return &GlobMatcher{}
}

// MatchesAny returns true if any tag matches any of the patterns.
// An empty pattern list matches nothing.
func (m *GlobMatcher) MatchesAny(tags, patterns []string) bool {
	for _, pattern := range patterns {
		for _, tag := range tags {
			// all patterns are compilable, they are checked at startup
			if matched, err := glob.Match(pattern, tag); err == nil && matched {
				return true
			}
		}
	}

	return false
}

// Validate reports the first malformed pattern, nil if all compile.
func (m *GlobMatcher) Validate(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := glob.Match(pattern, ""); err != nil {
			return err
		}
	}

	return nil
}
