package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vizu-disain/vizu/internal/branding"
	"github.com/vizu-disain/vizu/internal/updater"
)

var (
	updateCheck       bool
	updateForce       bool
	updateCurrent     string
	updatePath        string
	updateHostVersion string
	updateQuiet       bool
)

func init() {
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "Only check for updates, don't install")
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "Install even if already on the latest version or the host is too old")
	updateCmd.Flags().StringVar(&updateCurrent, "current", "", "Installed version (default: read from the install path)")
	updateCmd.Flags().StringVar(&updatePath, "path", "", "Install path (default: install_path from config)")
	updateCmd.Flags().StringVar(&updateHostVersion, "host-version", "", "Host platform version, checked against the manifest's minimum")
	updateCmd.Flags().BoolVarP(&updateQuiet, "quiet", "q", false, "Hide download progress")

	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Install the latest release of the plugin",
	Long: `Downloads the package announced by the release manifest, verifies it,
and swaps it into the install path. The previous install is restored if
anything goes wrong.

  vizu update --path /var/www/wp-content/plugins/vizu-plugin
  vizu update --check            # check only
  vizu update --force            # reinstall the latest release`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stderr := cmd.ErrOrStderr()
		w := cmd.OutOrStdout()

		var opts []updater.Option
		if !updateQuiet {
			opts = append(opts, updater.WithProgress(progressPrinter(stderr)))
		}
		env, err := newEnvironment(ctx, opts...)
		if err != nil {
			return err
		}
		defer env.Close()

		pkg := env.installedPackage(updatePath, updateCurrent)

		fmt.Fprintln(stderr, "Checking for updates...")
		res := env.checker.CheckForUpdate(ctx, pkg.Identifier, pkg.CurrentVersion, env.manifestURL)
		if res.Err != nil {
			return fmt.Errorf("checking for updates: %w", res.Err)
		}

		if updateCheck {
			if res.HasUpdate {
				fmt.Fprintf(w, "Update available: %s -> %s\n", pkg.CurrentVersion, res.RemoteVersion)
			} else {
				fmt.Fprintf(w, "You are on the latest version (%s)\n", pkg.CurrentVersion)
			}
			return nil
		}

		if !res.HasUpdate && !updateForce {
			fmt.Fprintf(w, "You are on the latest version (%s)\n", pkg.CurrentVersion)
			return nil
		}

		if minimum := res.Manifest.MinimumHostVersion; minimum != "" && updateHostVersion != "" {
			ok, err := updater.MeetsMinimum(updateHostVersion, minimum)
			if err != nil {
				return fmt.Errorf("comparing host version: %w", err)
			}
			if !ok && !updateForce {
				return fmt.Errorf("%s %s requires host version %s or newer (have %s); use --force to install anyway",
					pkg.Identifier, res.RemoteVersion, minimum, updateHostVersion)
			}
		}

		if pkg.InstallPath == "" {
			return fmt.Errorf("no install path: pass --path or run '%s config set install_path <dir>'", branding.CLIName())
		}

		fmt.Fprintf(stderr, "Downloading %s %s...\n", pkg.Identifier, res.RemoteVersion)
		if err := env.checker.ApplyUpdate(ctx, res.Manifest, pkg); err != nil {
			return fmt.Errorf("installing update: %w", err)
		}

		fmt.Fprintf(w, "Successfully updated to %s\n", res.RemoteVersion)
		return nil
	},
}

// progressPrinter renders download progress on a single terminal line.
func progressPrinter(w io.Writer) func(downloaded, total int64) {
	if f, ok := w.(*os.File); ok {
		if !term.IsTerminal(int(f.Fd())) {
			return func(int64, int64) {}
		}
	}
	return func(downloaded, total int64) {
		if total > 0 {
			fmt.Fprintf(w, "\r  %d / %d KiB (%d%%)", downloaded/1024, total/1024, downloaded*100/total)
			if downloaded >= total {
				fmt.Fprintln(w)
			}
			return
		}
		fmt.Fprintf(w, "\r  %d KiB", downloaded/1024)
	}
}
