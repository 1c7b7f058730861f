package ratelimit

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"

	zerr "github.com/regtools/ghcr-prune/errors"
	zlog "github.com/regtools/ghcr-prune/pkg/log"
)

const (
	// MaxSleep is the longest the governor will block waiting for a
	// rate limit reset before terminating the run.
	MaxSleep = 10 * time.Minute

	// secondaryLimitPause is the conservative pause applied to
	// mutating calls when the secondary limit signals a retry.
	secondaryLimitPause = 1 * time.Second

	remainingHeader  = "X-Ratelimit-Remaining"
	resetHeader      = "X-Ratelimit-Reset"
	retryAfterHeader = "Retry-After"
)

type Action string

const (
	ActionContinue Action = "continue"
	ActionSlept    Action = "slept"
	ActionAbort    Action = "abort"
)

// Governor inspects rate limit metadata on every registry response and
// either lets the caller continue, suspends it until the limit resets,
// or terminates the whole process when the reset is too far away.
type Governor struct {
	log   zlog.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
	exit  func(code int)
}

func NewGovernor(log zlog.Logger) *Governor {
	return &Governor{
		log:   log,
		now:   time.Now,
		sleep: sleepWithContext,
		exit:  defaultExit,
	}
}

// Wait applies the primary and, for delete calls, the secondary rate
// limit rules to resp. It returns the action taken and how long the
// caller was suspended.
func (g *Governor) Wait(ctx context.Context, resp *github.Response, secondaryEligible bool) (Action, time.Duration) {
	if resp == nil || resp.Response == nil {
		return ActionContinue, 0
	}

	if resp.Header.Get(remainingHeader) == "0" {
		return g.waitForPrimary(ctx, resp)
	}

	if secondaryEligible {
		return g.waitForSecondary(ctx, resp)
	}

	return ActionContinue, 0
}

func (g *Governor) waitForPrimary(ctx context.Context, resp *github.Response) (Action, time.Duration) {
	delta := g.resetDelta(resp)

	if delta > MaxSleep {
		g.log.Error().Err(zerr.ErrRateLimitExhausted).
			Str("component", "ratelimit").
			Dur("reset-in", delta).
			Dur("max-sleep", MaxSleep).
			Msg("rate limit exceeded, terminating")
		g.exit(1)

		return ActionAbort, 0
	}

	if delta > 0 {
		g.log.Warn().
			Str("component", "ratelimit").
			Dur("sleeping-for", delta).
			Msg("rate limit exceeded, sleeping until reset")
		g.sleep(ctx, delta)

		return ActionSlept, delta
	}

	return ActionContinue, 0
}

func (g *Governor) waitForSecondary(ctx context.Context, resp *github.Response) (Action, time.Duration) {
	retryAfter := resp.Header.Get(retryAfterHeader)
	if retryAfter == "" || retryAfter == "0" {
		return ActionContinue, 0
	}

	seconds, err := strconv.ParseInt(retryAfter, 10, 64)
	if err != nil {
		return ActionContinue, 0
	}

	delta := time.Duration(seconds) * time.Second

	if delta > MaxSleep {
		g.log.Error().Err(zerr.ErrRateLimitExhausted).
			Str("component", "ratelimit").
			Dur("retry-after", delta).
			Dur("max-sleep", MaxSleep).
			Msg("secondary rate limit exceeded, terminating")
		g.exit(1)

		return ActionAbort, 0
	}

	if delta < secondaryLimitPause {
		delta = secondaryLimitPause
	}

	g.log.Warn().
		Str("component", "ratelimit").
		Dur("sleeping-for", delta).
		Msg("secondary rate limit signalled, backing off")
	g.sleep(ctx, delta)

	return ActionSlept, delta
}

// resetDelta reads the reset instant from the headers, falling back to
// the parsed rate metadata go-github attaches to every response.
func (g *Governor) resetDelta(resp *github.Response) time.Duration {
	if raw := resp.Header.Get(resetHeader); raw != "" {
		if epoch, err := strconv.ParseFloat(raw, 64); err == nil {
			return time.Unix(int64(epoch), 0).Sub(g.now())
		}
	}

	if !resp.Rate.Reset.IsZero() {
		return resp.Rate.Reset.Sub(g.now())
	}

	return 0
}

func sleepWithContext(ctx context.Context, delta time.Duration) {
	timer := time.NewTimer(delta)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// defaultExit ends the whole process, in-flight deletions included;
// re-invoking the job later is cheap and idempotent.
func defaultExit(code int) {
	os.Exit(code)
}
