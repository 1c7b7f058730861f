package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	zerr "github.com/regtools/ghcr-prune/errors"
)

// cutoffLayouts are the accepted absolute forms. Every layout carries
// an explicit zone; naive timestamps are rejected.
//
//nolint:gochecknoglobals
var cutoffLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 -0700",
	"2006-01-02 MST",
}

//nolint:gochecknoglobals
var relativeUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// ParseCutoff turns a cut-off string into a zoned instant. Accepted
// forms are the absolute layouts above and a relative
// "<n> <unit>(s) ago <zone>" form, e.g. "2 days ago UTC".
func ParseCutoff(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty cut-off", zerr.ErrBadCutoff)
	}

	for _, layout := range cutoffLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}

	if ts, err := parseRelativeCutoff(raw); err == nil {
		return ts, nil
	}

	return time.Time{}, fmt.Errorf("%w: unable to parse %q", zerr.ErrBadCutoff, raw)
}

func parseRelativeCutoff(raw string) (time.Time, error) {
	fields := strings.Fields(raw)
	// "<n> <unit> ago <zone>"
	if len(fields) != 4 || fields[2] != "ago" {
		return time.Time{}, zerr.ErrBadCutoff
	}

	amount, err := strconv.Atoi(fields[0])
	if err != nil || amount < 0 {
		return time.Time{}, zerr.ErrBadCutoff
	}

	unit, ok := relativeUnits[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return time.Time{}, zerr.ErrBadCutoff
	}

	loc, err := time.LoadLocation(fields[3])
	if err != nil {
		return time.Time{}, zerr.ErrBadCutoff
	}

	return time.Now().In(loc).Add(-time.Duration(amount) * unit), nil
}
