package retention

import (
	"time"
)

// TimestampField selects which version timestamp governs the age cut-off.
type TimestampField string

const (
	CreatedAt TimestampField = "created_at"
	UpdatedAt TimestampField = "updated_at"
)

// Version is a read-only snapshot of one container image version.
type Version struct {
	ID        int64
	CreatedAt *time.Time
	UpdatedAt *time.Time
	Tags      []string
}

// Timestamp resolves the timestamp named by field, nil if absent.
func (v Version) Timestamp(field TimestampField) *time.Time {
	if field == UpdatedAt {
		return v.UpdatedAt
	}

	return v.CreatedAt
}

func (v Version) Untagged() bool {
	return len(v.Tags) == 0
}

// Policy is the validated retention configuration, immutable for the
// duration of a run. Cutoff is guaranteed zoned by pkg/config.
type Policy struct {
	Cutoff          time.Time
	TimestampField  TimestampField
	UntaggedOnly    bool
	IncludeUntagged bool
	FilterPatterns  []string
	SkipPatterns    []string
	KeepAtLeast     int
	DryRun          bool
}

type Action string

const (
	ActionKeep     Action = "keep"
	ActionDelete   Action = "delete"
	ActionSimulate Action = "simulate"
)

// Decision is the verdict for a single version, with the reason used
// for logging.
type Decision struct {
	Version Version
	Action  Action
	Reason  string
}
