package registry

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"github.com/regtools/ghcr-prune/pkg/config"
	zlog "github.com/regtools/ghcr-prune/pkg/log"
	"github.com/regtools/ghcr-prune/pkg/ratelimit"
	"github.com/regtools/ghcr-prune/pkg/retention"
)

const (
	packageType = "container"
	pageSize    = 100
)

// ImageTarget is one account-scoped container image name plus its
// URL-safe encoded form, used in messages and output keys.
type ImageTarget struct {
	Name    string
	Encoded string
}

func NewImageTarget(name string) ImageTarget {
	name = strings.TrimSpace(name)

	return ImageTarget{Name: name, Encoded: url.PathEscape(name)}
}

// Registry is the account-type-polymorphic package API. The
// implementation (org vs. personal endpoints) is selected once at
// configuration time.
type Registry interface {
	// ListPackages returns the full container package catalogue of
	// the account, all pages assembled.
	ListPackages(ctx context.Context) ([]string, error)
	// ListVersions returns every version of one image, all pages
	// assembled, in the registry's natural order (newest first).
	ListVersions(ctx context.Context, image ImageTarget) ([]retention.Version, error)
	// DeleteVersion issues a single delete attempt, no retries.
	DeleteVersion(ctx context.Context, image ImageTarget, versionID int64) error
}

// New builds the registry client for the configured account type.
func New(conf *config.Config, governor *ratelimit.Governor, log zlog.Logger) Registry {
	client := github.NewClient(nil).WithAuthToken(conf.Token)

	return NewWithClient(client, conf, governor, log)
}

// NewWithClient is the test seam; the github client may be backed by
// any transport.
func NewWithClient(client *github.Client, conf *config.Config,
	governor *ratelimit.Governor, log zlog.Logger,
) Registry {
	base := baseClient{client: client, governor: governor, log: log}

	if conf.AccountType == config.AccountOrg {
		return &orgClient{baseClient: base, org: conf.OrgName}
	}

	return &userClient{baseClient: base}
}

type baseClient struct {
	client   *github.Client
	governor *ratelimit.Governor
	log      zlog.Logger
}

// listOptions starts the pagination cursor for either account type.
func listOptions() *github.PackageListOptions {
	return &github.PackageListOptions{
		PackageType: github.String(packageType),
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
}

func toVersion(version *github.PackageVersion) retention.Version {
	var tags []string

	if meta := version.GetMetadata(); meta != nil && meta.GetContainer() != nil {
		tags = meta.GetContainer().Tags
	}

	return retention.Version{
		ID:        version.GetID(),
		CreatedAt: toTime(version.CreatedAt),
		UpdatedAt: toTime(version.UpdatedAt),
		Tags:      tags,
	}
}

func toTime(ts *github.Timestamp) *time.Time {
	if ts == nil || ts.Time.IsZero() {
		return nil
	}

	utc := ts.Time

	return &utc
}

type orgClient struct {
	baseClient

	org string
}

func (c *orgClient) ListPackages(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	opts := listOptions()

	for {
		packages, resp, err := c.client.Organizations.ListPackages(ctx, c.org, opts)
		if err != nil {
			return nil, err
		}

		c.governor.Wait(ctx, resp, false)

		for _, pkg := range packages {
			names = append(names, pkg.GetName())
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return names, nil
}

func (c *orgClient) ListVersions(ctx context.Context, image ImageTarget) ([]retention.Version, error) {
	versions := make([]retention.Version, 0)
	opts := listOptions()

	for {
		page, resp, err := c.client.Organizations.PackageGetAllVersions(
			ctx, c.org, packageType, image.Name, opts)
		if err != nil {
			return nil, err
		}

		c.governor.Wait(ctx, resp, false)

		for _, version := range page {
			versions = append(versions, toVersion(version))
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return versions, nil
}

func (c *orgClient) DeleteVersion(ctx context.Context, image ImageTarget, versionID int64) error {
	resp, err := c.client.Organizations.PackageDeleteVersion(
		ctx, c.org, packageType, image.Name, versionID)

	return c.afterDelete(ctx, resp, err)
}

type userClient struct {
	baseClient
}

func (c *userClient) ListPackages(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	opts := listOptions()

	for {
		packages, resp, err := c.client.Users.ListPackages(ctx, "", opts)
		if err != nil {
			return nil, err
		}

		c.governor.Wait(ctx, resp, false)

		for _, pkg := range packages {
			names = append(names, pkg.GetName())
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return names, nil
}

func (c *userClient) ListVersions(ctx context.Context, image ImageTarget) ([]retention.Version, error) {
	versions := make([]retention.Version, 0)
	opts := listOptions()

	for {
		page, resp, err := c.client.Users.PackageGetAllVersions(
			ctx, "", packageType, image.Name, opts)
		if err != nil {
			return nil, err
		}

		c.governor.Wait(ctx, resp, false)

		for _, version := range page {
			versions = append(versions, toVersion(version))
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return versions, nil
}

func (c *userClient) DeleteVersion(ctx context.Context, image ImageTarget, versionID int64) error {
	resp, err := c.client.Users.PackageDeleteVersion(
		ctx, "", packageType, image.Name, versionID)

	return c.afterDelete(ctx, resp, err)
}
