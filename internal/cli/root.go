package cli

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vizu-disain/vizu/internal/branding"
	"github.com/vizu-disain/vizu/internal/config"
	"github.com/vizu-disain/vizu/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagLogLevel string
	flagLogFile  string
	flagNoBanner bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to a rotated file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoBanner, "no-banner", false, "Do not print the update-available banner")
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` keeps the Vizu site extension up to date. It checks a remote
release manifest, installs new packages atomically, and renders the
extension's shortcodes for previews.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()

		level := flagLogLevel
		if level == "" {
			level = config.Get(config.KeyLogLevel)
		}
		logFile := flagLogFile
		if logFile == "" {
			logFile = config.Get(config.KeyLogFile)
		}
		if err := logging.Init(level, logFile); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}

		if flagNoBanner {
			return nil
		}
		// Skip banners for commands that report update status themselves.
		switch topLevel(cmd).Name() {
		case "update", "check", "watch", "state", "version", "config", "doctor":
			return nil
		}
		printBanner(cmd)
		return nil
	},
}

// topLevel returns the direct child of the root command that cmd belongs to.
func topLevel(cmd *cobra.Command) *cobra.Command {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd
}

// printBanner shows a non-blocking update notice from recorded state.
func printBanner(cmd *cobra.Command) {
	// The environment stays open: a due check refreshes state in the
	// background until the process exits.
	env, err := newEnvironment(cmd.Context())
	if err != nil {
		log.Debugf("skipping update banner: %v", err)
		return
	}

	pkg := env.installedPackage("", "")
	env.checker.CheckAndPrintBanner(cmd.Context(), cmd.ErrOrStderr(), pkg, env.manifestURL, env.interval)
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
