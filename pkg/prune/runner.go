package prune

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"

	zerr "github.com/regtools/ghcr-prune/errors"
	"github.com/regtools/ghcr-prune/pkg/config"
	zlog "github.com/regtools/ghcr-prune/pkg/log"
	"github.com/regtools/ghcr-prune/pkg/registry"
	"github.com/regtools/ghcr-prune/pkg/retention"
)

// maxConcurrentDeletes caps in-flight delete calls per image; the
// registry throttles anything wider into secondary rate limits.
const maxConcurrentDeletes = 50

const issuesURL = "https://github.com/regtools/ghcr-prune/issues/new"

// Pruner drives one run: resolve images, list versions, evaluate the
// policy, and execute the resulting deletions concurrently.
type Pruner struct {
	conf     *config.Config
	registry registry.Registry
	policy   retention.PolicyManager
	ledger   *Ledger
	log      zlog.Logger
}

func NewPruner(conf *config.Config, reg registry.Registry, log zlog.Logger) *Pruner {
	return &Pruner{
		conf:     conf,
		registry: reg,
		policy:   retention.NewPolicyManager(conf.Policy(), log),
		ledger:   NewLedger(),
		log:      log,
	}
}

// Run processes every resolved image in parallel and returns the
// filled ledger. A failure in one image's task never cancels the
// others; only configuration and catalogue-listing errors abort.
func (p *Pruner) Run(ctx context.Context) (*Ledger, error) {
	targets, err := p.resolveTargets(ctx)
	if err != nil {
		return nil, err
	}

	var wtgrp sync.WaitGroup

	for _, target := range targets {
		wtgrp.Add(1)

		go func(target registry.ImageTarget) {
			defer wtgrp.Done()

			p.pruneImage(ctx, target)
		}(target)
	}

	wtgrp.Wait()

	return p.ledger, nil
}

func (p *Pruner) resolveTargets(ctx context.Context) ([]registry.ImageTarget, error) {
	if p.conf.RestrictedTokenMode() {
		// single literal name, validated at configuration time
		return []registry.ImageTarget{registry.NewImageTarget(p.conf.ImageNames[0])}, nil
	}

	catalogue, err := p.registry.ListPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing account packages: %w", err)
	}

	names := ResolveImageNames(p.conf.ImageNames, catalogue)

	targets := make([]registry.ImageTarget, 0, len(names))
	for _, name := range names {
		targets = append(targets, registry.NewImageTarget(name))
	}

	return targets, nil
}

func (p *Pruner) pruneImage(ctx context.Context, image registry.ImageTarget) {
	versions, err := p.registry.ListVersions(ctx, image)
	if err != nil {
		p.log.Error().Err(err).Str("image", image.Name).Msg("failed to list versions")

		return
	}

	decisions := p.policy.Evaluate(image.Name, versions)

	sem := make(chan struct{}, maxConcurrentDeletes)

	var wtgrp sync.WaitGroup

	deletes := 0

	for _, decision := range decisions {
		switch decision.Action {
		case retention.ActionSimulate:
			p.logSimulated(image, decision)
		case retention.ActionDelete:
			deletes++

			wtgrp.Add(1)

			go func(decision retention.Decision) {
				defer wtgrp.Done()

				p.deleteVersion(ctx, image, decision, sem)
			}(decision)
		case retention.ActionKeep:
		}
	}

	if deletes == 0 {
		p.log.Info().Str("image", image.Name).Msg("no more versions to delete")
	}

	wtgrp.Wait()
}

func (p *Pruner) deleteVersion(ctx context.Context, image registry.ImageTarget,
	decision retention.Decision, sem chan struct{},
) {
	// one broken deletion must never take down its siblings
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().
				Str("image", image.Name).
				Int64("version", decision.Version.ID).
				Interface("panic", rec).
				Msgf("unhandled error during deletion, please report this at %s", issuesURL)
		}
	}()

	sem <- struct{}{}
	defer func() { <-sem }()

	entry := fmt.Sprintf("%s:%d", image.Name, decision.Version.ID)

	err := p.registry.DeleteVersion(ctx, image, decision.Version.ID)

	switch {
	case err == nil:
		p.ledger.RecordDeleted(entry)
		p.log.Info().Str("image", entry).Msg("deleted old image version")
	case errors.Is(err, zerr.ErrManualAssistance):
		// reported in one block at the end of the run
		p.ledger.RecordNeedsAssistance(entry)
	case errors.Is(err, zerr.ErrDeleteTimeout):
		// dropped from all buckets, not retried
		p.log.Warn().Err(err).Str("image", entry).Msg("delete request timed out")
	default:
		p.ledger.RecordFailed(entry)
		p.log.Error().Err(err).Str("image", entry).Msg("couldn't delete image version")
	}
}

func (p *Pruner) logSimulated(image registry.ImageTarget, decision retention.Decision) {
	event := p.log.Info().
		Str("image", fmt.Sprintf("%s:%d", image.Name, decision.Version.ID))

	if ts := decision.Version.Timestamp(p.conf.TimestampField); ts != nil {
		event = event.Str("age", humanize.Time(*ts))
	}

	event.Msg("would delete image version")
}
