package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vizu-disain/vizu/internal/updater"
)

var (
	checkJSON    bool
	checkForce   bool
	checkCurrent string
	checkPath    string
)

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the result as JSON")
	checkCmd.Flags().BoolVar(&checkForce, "force", false, "Check now even if the minimum interval has not elapsed")
	checkCmd.Flags().StringVar(&checkCurrent, "current", "", "Installed version (default: read from the install path)")
	checkCmd.Flags().StringVar(&checkPath, "path", "", "Install path (default: install_path from config)")
	rootCmd.AddCommand(checkCmd)
}

// checkOutput is the JSON shape printed by `check --json`.
type checkOutput struct {
	Package   string `json:"package"`
	Checked   bool   `json:"checked"`
	HasUpdate bool   `json:"has_update"`
	Current   string `json:"current_version"`
	Remote    string `json:"remote_version,omitempty"`
	Changelog string `json:"changelog,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the release manifest for a newer version",
	Long: `Compares the installed version with the remote release manifest.

Checks are rate limited by check_interval; a check inside the interval
reports the last recorded result. Use --force to check immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newEnvironment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pkg := env.installedPackage(checkPath, checkCurrent)

		var res updater.CheckResult
		ran := true
		if checkForce {
			res = env.checker.CheckForUpdate(ctx, pkg.Identifier, pkg.CurrentVersion, env.manifestURL)
		} else {
			res, ran = env.checker.CheckIfDue(ctx, pkg, env.manifestURL, env.interval)
		}

		out := checkOutput{
			Package:   pkg.Identifier,
			Checked:   ran,
			HasUpdate: res.HasUpdate,
			Current:   pkg.CurrentVersion,
			Remote:    res.RemoteVersion,
		}
		if res.Manifest != nil {
			out.Changelog = res.Manifest.Changelog
		}
		if !ran && res.RemoteVersion != "" {
			// The recorded result may predate the installed version.
			if available, err := updater.IsUpdateAvailable(pkg.CurrentVersion, res.RemoteVersion); err == nil {
				out.HasUpdate = available
			}
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			out.ErrorKind = updater.KindOf(res.Err).String()
		}

		w := cmd.OutOrStdout()
		if checkJSON {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling check result: %w", err)
			}
			fmt.Fprintln(w, string(data))
			return nil
		}

		switch {
		case res.Err != nil:
			return fmt.Errorf("checking for updates: %w", res.Err)
		case out.Remote == "":
			fmt.Fprintf(w, "No update information yet for %s (next check after %s)\n", pkg.Identifier, env.interval)
		case out.HasUpdate:
			fmt.Fprintf(w, "Update available: %s -> %s\n", pkg.CurrentVersion, out.Remote)
		default:
			fmt.Fprintf(w, "You are on the latest version (%s)\n", pkg.CurrentVersion)
		}
		return nil
	},
}
