package retention_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	zlog "github.com/regtools/ghcr-prune/pkg/log"
	"github.com/regtools/ghcr-prune/pkg/retention"
)

var cutoff = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

func timeRef(ts time.Time) *time.Time {
	return &ts
}

func oldVersion(id int64, tags ...string) retention.Version {
	return retention.Version{
		ID:        id,
		CreatedAt: timeRef(cutoff.Add(-time.Duration(id) * time.Hour)),
		UpdatedAt: timeRef(cutoff.Add(-time.Duration(id) * time.Hour)),
		Tags:      tags,
	}
}

func basePolicy() retention.Policy {
	return retention.Policy{
		Cutoff:          cutoff,
		TimestampField:  retention.UpdatedAt,
		IncludeUntagged: true,
	}
}

func discardLogger() zlog.Logger {
	return zlog.NewTestLogger(&bytes.Buffer{})
}

func TestEvaluateCutoff(t *testing.T) {
	Convey("versions newer than the cut-off are always kept", t, func() {
		policy := basePolicy()
		policy.FilterPatterns = []string{"*"}
		policy.KeepAtLeast = 0

		recent := retention.Version{
			ID:        1,
			UpdatedAt: timeRef(cutoff.Add(time.Hour)),
			Tags:      []string{"latest"},
		}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{recent})

		So(decisions, ShouldHaveLength, 1)
		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
	})

	Convey("versions older than the cut-off are deleted", t, func() {
		manager := retention.NewPolicyManager(basePolicy(), discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{oldVersion(1)})

		So(decisions[0].Action, ShouldEqual, retention.ActionDelete)
	})

	Convey("the selected timestamp field governs age", t, func() {
		policy := basePolicy()
		policy.TimestampField = retention.CreatedAt

		version := retention.Version{
			ID:        7,
			CreatedAt: timeRef(cutoff.Add(time.Hour)),
			UpdatedAt: timeRef(cutoff.Add(-time.Hour)),
		}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{version})

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
	})
}

func TestEvaluateMissingTimestamp(t *testing.T) {
	Convey("a version without a parsable timestamp is kept and diagnosed once", t, func() {
		buf := &bytes.Buffer{}
		manager := retention.NewPolicyManager(basePolicy(), zlog.NewTestLogger(buf))

		version := retention.Version{ID: 42}
		decisions := manager.Evaluate("app", []retention.Version{version})

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[0].Reason, ShouldContainSubstring, "unable to parse timestamps")

		lines := strings.Count(buf.String(), "unable to parse timestamps")
		So(lines, ShouldEqual, 1)
		So(buf.String(), ShouldContainSubstring, `"version":42`)
	})
}

func TestEvaluateUntaggedRules(t *testing.T) {
	Convey("untagged-only keeps every tagged version", t, func() {
		policy := basePolicy()
		policy.UntaggedOnly = true

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{
			oldVersion(1, "v1.0"),
			oldVersion(2),
		})

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionDelete)
	})

	Convey("untagged versions are kept when they are excluded from the filter", t, func() {
		policy := basePolicy()
		policy.IncludeUntagged = false

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{oldVersion(1)})

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
	})
}

func TestEvaluateFilterPatterns(t *testing.T) {
	Convey("a version is a candidate when any tag matches any filter pattern", t, func() {
		policy := basePolicy()
		policy.FilterPatterns = []string{"sha-*"}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{
			oldVersion(1, "sha-deadbeef", "edge"),
			oldVersion(2, "v1.0"),
		})

		So(decisions[0].Action, ShouldEqual, retention.ActionDelete)
		So(decisions[1].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Reason, ShouldContainSubstring, "filter")
	})
}

func TestEvaluateKeepAtLeast(t *testing.T) {
	Convey("the quota retains the first N positions of a homogeneous list", t, func() {
		policy := basePolicy()
		policy.KeepAtLeast = 2

		versions := []retention.Version{
			oldVersion(1), oldVersion(2), oldVersion(3), oldVersion(4), oldVersion(5),
		}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", versions)

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[2].Action, ShouldEqual, retention.ActionDelete)
		So(decisions[3].Action, ShouldEqual, retention.ActionDelete)
		So(decisions[4].Action, ShouldEqual, retention.ActionDelete)
	})

	Convey("a quota larger than the list keeps everything", t, func() {
		policy := basePolicy()
		policy.KeepAtLeast = 10

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{oldVersion(1), oldVersion(2)})

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionKeep)
	})

	Convey("versions kept by other rules consume the quota", t, func() {
		policy := basePolicy()
		policy.KeepAtLeast = 1

		recent := retention.Version{ID: 1, UpdatedAt: timeRef(cutoff.Add(time.Hour))}
		versions := []retention.Version{recent, oldVersion(2), oldVersion(3)}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", versions)

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionDelete)
		So(decisions[2].Action, ShouldEqual, retention.ActionDelete)
	})

	Convey("the quota overrides the filter verdict entirely", t, func() {
		policy := basePolicy()
		policy.KeepAtLeast = 1
		// no tag matches, so without the quota nothing would be deleted
		policy.FilterPatterns = []string{"does-not-match-*"}

		versions := []retention.Version{
			oldVersion(1, "v1.0"), oldVersion(2, "v1.1"), oldVersion(3, "v1.2"),
		}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", versions)

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionDelete)
		So(decisions[2].Action, ShouldEqual, retention.ActionDelete)
	})
}

func TestEvaluateSkipPatterns(t *testing.T) {
	Convey("a protected tag always wins over a filter match", t, func() {
		policy := basePolicy()
		policy.FilterPatterns = []string{"sha-*"}
		policy.SkipPatterns = []string{"sha-*"}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{oldVersion(1, "sha-deadbeef")})

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[0].Reason, ShouldContainSubstring, "protected")
	})

	Convey("a protected tag wins over the keep-at-least override", t, func() {
		policy := basePolicy()
		policy.KeepAtLeast = 1
		policy.SkipPatterns = []string{"important"}

		versions := []retention.Version{
			oldVersion(1), oldVersion(2, "important"), oldVersion(3),
		}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", versions)

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Reason, ShouldContainSubstring, "protected")
	})
}

func TestEvaluateDryRun(t *testing.T) {
	Convey("dry-run turns every delete into a simulation", t, func() {
		policy := basePolicy()
		policy.DryRun = true

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", []retention.Version{oldVersion(1), oldVersion(2)})

		So(decisions[0].Action, ShouldEqual, retention.ActionSimulate)
		So(decisions[1].Action, ShouldEqual, retention.ActionSimulate)
	})

	Convey("simulated deletions still consume the keep-at-least arithmetic", t, func() {
		policy := basePolicy()
		policy.DryRun = true
		policy.KeepAtLeast = 1

		versions := []retention.Version{oldVersion(1), oldVersion(2), oldVersion(3)}

		manager := retention.NewPolicyManager(policy, discardLogger())
		decisions := manager.Evaluate("app", versions)

		So(decisions[0].Action, ShouldEqual, retention.ActionKeep)
		So(decisions[1].Action, ShouldEqual, retention.ActionSimulate)
		So(decisions[2].Action, ShouldEqual, retention.ActionSimulate)
	})
}
