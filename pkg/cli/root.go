package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/regtools/ghcr-prune/pkg/config"
	zlog "github.com/regtools/ghcr-prune/pkg/log"
	"github.com/regtools/ghcr-prune/pkg/prune"
	"github.com/regtools/ghcr-prune/pkg/ratelimit"
	"github.com/regtools/ghcr-prune/pkg/registry"
	"github.com/regtools/ghcr-prune/pkg/retention"
)

const envPrefix = "GHCR_PRUNE"

// NewRootCmd builds the one-shot prune command. Every flag can also be
// supplied through the environment as GHCR_PRUNE_<FLAG>.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghcr-prune",
		Short: "`ghcr-prune` retires old container image versions from the GitHub container registry",
		Long: "`ghcr-prune` retires old container image versions from the GitHub container registry.\n\n" +
			"Given a set of image name patterns, a cut-off and tag filters, it lists all matching\n" +
			"package versions, decides which ones the retention policy allows to go, and deletes\n" +
			"them while cooperating with the API's primary and secondary rate limits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfiguration(cmd)
			if err != nil {
				return err
			}

			// errors past this point are not usage errors
			cmd.SilenceUsage = true

			logger := zlog.NewLogger(conf.LogLevel, "")
			governor := ratelimit.NewGovernor(logger)
			reg := registry.New(conf, governor, logger)
			pruner := prune.NewPruner(conf, reg, logger)

			ledger, err := pruner.Run(cmd.Context())
			if err != nil {
				logger.Error().Err(err).Msg("run failed")

				return err
			}

			return prune.NewReporter(cmd.OutOrStdout()).Report(ledger, conf.OutputPath)
		},
	}

	flags := rootCmd.Flags()
	flags.String("account-type", "", "account type, 'org' or 'personal'")
	flags.String("org-name", "", "organization name, required for org accounts")
	flags.String("token", "", "access token with the packages scopes")
	flags.String("token-type", string(config.TokenPAT),
		"'pat' or 'github-token'; the workflow token restricts the run to one literal image name")
	flags.String("image-names", "", "comma-separated image names or glob patterns")
	flags.String("timestamp-to-use", string(retention.UpdatedAt),
		"which timestamp governs age, 'updated_at' or 'created_at'")
	flags.String("cut-off", "", "zoned cut-off, e.g. '2024-03-01T00:00:00Z' or '2 days ago UTC'")
	flags.Bool("untagged-only", false, "only delete untagged versions")
	flags.String("skip-tags", "", "comma-separated glob patterns for tags that must never be deleted")
	flags.String("filter-tags", "", "comma-separated glob patterns for tags to consider for deletion")
	flags.Bool("filter-include-untagged", true, "whether untagged versions are considered for deletion")
	flags.Int("keep-at-least", 0, "number of most recent versions to keep regardless of other rules")
	flags.Bool("dry-run", false, "log what would be deleted without deleting anything")
	flags.String("log-level", "info", "log level")
	flags.String("output", os.Getenv("GITHUB_OUTPUT"), "file the outcome lists are appended to")

	return rootCmd
}

func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	vip := viper.New()
	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vip.AutomaticEnv()

	if err := vip.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	cutoff, err := config.ParseCutoff(vip.GetString("cut-off"))
	if err != nil {
		return nil, err
	}

	conf := &config.Config{
		AccountType:     config.AccountType(vip.GetString("account-type")),
		OrgName:         vip.GetString("org-name"),
		Token:           vip.GetString("token"),
		TokenType:       config.TokenType(vip.GetString("token-type")),
		ImageNames:      splitCommaList(vip.GetString("image-names")),
		TimestampField:  retention.TimestampField(vip.GetString("timestamp-to-use")),
		Cutoff:          cutoff,
		UntaggedOnly:    vip.GetBool("untagged-only"),
		SkipPatterns:    splitCommaList(vip.GetString("skip-tags")),
		FilterPatterns:  splitCommaList(vip.GetString("filter-tags")),
		KeepAtLeast:     vip.GetInt("keep-at-least"),
		IncludeUntagged: vip.GetBool("filter-include-untagged"),
		DryRun:          vip.GetBool("dry-run"),
		LogLevel:        vip.GetString("log-level"),
		OutputPath:      vip.GetString("output"),
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func splitCommaList(raw string) []string {
	parts := make([]string, 0)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}

	return parts
}
