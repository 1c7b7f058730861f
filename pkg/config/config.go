package config

import (
	"fmt"
	"strings"
	"time"

	zerr "github.com/regtools/ghcr-prune/errors"
	"github.com/regtools/ghcr-prune/pkg/retention"
)

type AccountType string

const (
	AccountOrg      AccountType = "org"
	AccountPersonal AccountType = "personal"
)

type TokenType string

const (
	// TokenPAT is a personal access token with the packages scopes.
	TokenPAT TokenType = "pat"
	// TokenGithub is the workflow-scoped GITHUB_TOKEN; it can only
	// touch the single package owned by the invoking repository.
	TokenGithub TokenType = "github-token"
)

// Config is the validated, immutable configuration for one run.
type Config struct {
	AccountType     AccountType
	OrgName         string
	Token           string
	TokenType       TokenType
	ImageNames      []string
	TimestampField  retention.TimestampField
	Cutoff          time.Time
	UntaggedOnly    bool
	SkipPatterns    []string
	FilterPatterns  []string
	KeepAtLeast     int
	IncludeUntagged bool
	DryRun          bool

	LogLevel string
	// OutputPath is where the outcome lists are appended, normally
	// the file named by the GITHUB_OUTPUT env var.
	OutputPath string
}

// Validate fails fast before any network activity happens.
func (c *Config) Validate() error {
	if c.AccountType != AccountOrg && c.AccountType != AccountPersonal {
		return fmt.Errorf("%w: account type must be %q or %q, got %q",
			zerr.ErrBadConfig, AccountOrg, AccountPersonal, c.AccountType)
	}

	if c.AccountType == AccountOrg && c.OrgName == "" {
		return zerr.ErrOrgNameRequired
	}

	if c.Token == "" {
		return fmt.Errorf("%w: token must not be empty", zerr.ErrBadConfig)
	}

	if c.TokenType != TokenPAT && c.TokenType != TokenGithub {
		return fmt.Errorf("%w: token type must be %q or %q, got %q",
			zerr.ErrBadConfig, TokenPAT, TokenGithub, c.TokenType)
	}

	if c.TimestampField != retention.CreatedAt && c.TimestampField != retention.UpdatedAt {
		return fmt.Errorf("%w: timestamp to use must be %q or %q, got %q",
			zerr.ErrBadConfig, retention.CreatedAt, retention.UpdatedAt, c.TimestampField)
	}

	if len(c.ImageNames) == 0 {
		return fmt.Errorf("%w: at least one image name is required", zerr.ErrBadConfig)
	}

	if c.KeepAtLeast < 0 {
		return zerr.ErrBadKeepAtLeast
	}

	if c.Cutoff.IsZero() {
		return fmt.Errorf("%w: cut-off is required", zerr.ErrBadConfig)
	}

	if c.TokenType == TokenGithub {
		if len(c.ImageNames) != 1 {
			return fmt.Errorf("%w: github-token mode handles exactly one image, got %d",
				zerr.ErrBadImageName, len(c.ImageNames))
		}

		if strings.ContainsAny(c.ImageNames[0], "*?[") {
			return fmt.Errorf("%w: wildcards cannot be used with a github-token", zerr.ErrBadImageName)
		}
	}

	matcher := retention.NewGlobMatcher()

	if err := matcher.Validate(c.FilterPatterns); err != nil {
		return fmt.Errorf("%w: bad filter-tags pattern: %w", zerr.ErrBadConfig, err)
	}

	if err := matcher.Validate(c.SkipPatterns); err != nil {
		return fmt.Errorf("%w: bad skip-tags pattern: %w", zerr.ErrBadConfig, err)
	}

	return nil
}

// Policy derives the retention policy evaluated per image version.
func (c *Config) Policy() retention.Policy {
	return retention.Policy{
		Cutoff:          c.Cutoff,
		TimestampField:  c.TimestampField,
		UntaggedOnly:    c.UntaggedOnly,
		IncludeUntagged: c.IncludeUntagged,
		FilterPatterns:  c.FilterPatterns,
		SkipPatterns:    c.SkipPatterns,
		KeepAtLeast:     c.KeepAtLeast,
		DryRun:          c.DryRun,
	}
}

// RestrictedTokenMode reports whether the run is scoped to a single
// literal package name with no catalogue listing.
func (c *Config) RestrictedTokenMode() bool {
	return c.TokenType == TokenGithub
}
