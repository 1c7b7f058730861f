package retention

import (
	zlog "github.com/regtools/ghcr-prune/pkg/log"
)

const (
	// reasons for keeping a version.
	reasonNoTimestamp     = "unable to parse timestamps"
	reasonTooRecent       = "newer than the cut-off"
	reasonTagged          = "only untagged versions are deleted"
	reasonUntagged        = "untagged versions are excluded"
	reasonNoFilterMatch   = "didn't match any filter pattern"
	reasonKeepAtLeast     = "retained by the keep-at-least quota"
	reasonProtectedTag    = "tagged with a protected tag"
	reasonOlderThanCutoff = "older than the cut-off"
)

// PolicyManager evaluates a retention policy over version listings.
// It holds no mutable state and is safe to share across goroutines.
type PolicyManager struct {
	policy  Policy
	matcher *GlobMatcher
	log     zlog.Logger
}

func NewPolicyManager(policy Policy, log zlog.Logger) PolicyManager {
	return PolicyManager{
		policy:  policy,
		matcher: NewGlobMatcher(),
		log:     log,
	}
}

// Evaluate produces a delete/keep/simulate decision for every version.
// Versions must be supplied in the registry's natural order (newest
// first); the keep-at-least quota counts positions in that order.
func (p PolicyManager) Evaluate(image string, versions []Version) []Decision {
	decisions := make([]Decision, 0, len(versions))

	// versions already marked for deletion (real or simulated), used
	// by the positional keep-at-least arithmetic
	marked := 0

	for idx, version := range versions {
		decision := p.evaluateOne(idx, marked, version)

		if decision.Action != ActionKeep {
			marked++
		}

		p.logDecision(image, decision)

		decisions = append(decisions, decision)
	}

	return decisions
}

func (p PolicyManager) evaluateOne(idx, marked int, version Version) Decision {
	timestamp := version.Timestamp(p.policy.TimestampField)
	if timestamp == nil {
		return Decision{Version: version, Action: ActionKeep, Reason: reasonNoTimestamp}
	}

	if timestamp.After(p.policy.Cutoff) {
		return Decision{Version: version, Action: ActionKeep, Reason: reasonTooRecent}
	}

	if p.policy.UntaggedOnly && !version.Untagged() {
		return Decision{Version: version, Action: ActionKeep, Reason: reasonTagged}
	}

	if version.Untagged() && !p.policy.IncludeUntagged {
		return Decision{Version: version, Action: ActionKeep, Reason: reasonUntagged}
	}

	deleteVersion := len(p.policy.FilterPatterns) == 0 ||
		p.matcher.MatchesAny(version.Tags, p.policy.FilterPatterns)
	reason := reasonOlderThanCutoff

	if !deleteVersion {
		reason = reasonNoFilterMatch
	}

	// the quota replaces the filter verdict entirely: the first
	// keep-at-least not-yet-deleted positions are retained, the rest
	// are deleted
	if p.policy.KeepAtLeast > 0 {
		deleteVersion = idx+1-marked > p.policy.KeepAtLeast
		if !deleteVersion {
			reason = reasonKeepAtLeast
		}
	}

	// protected tags win over everything above, they can only force a keep
	if p.matcher.MatchesAny(version.Tags, p.policy.SkipPatterns) {
		deleteVersion = false
		reason = reasonProtectedTag
	}

	if !deleteVersion {
		return Decision{Version: version, Action: ActionKeep, Reason: reason}
	}

	if p.policy.DryRun {
		return Decision{Version: version, Action: ActionSimulate, Reason: reason}
	}

	return Decision{Version: version, Action: ActionDelete, Reason: reason}
}

func (p PolicyManager) logDecision(image string, decision Decision) {
	p.log.Info().
		Str("component", "retention").
		Bool("dry-run", p.policy.DryRun).
		Str("image", image).
		Int64("version", decision.Version.ID).
		Strs("tags", decision.Version.Tags).
		Str("decision", string(decision.Action)).
		Str("reason", decision.Reason).
		Msg("applied policy")
}
