package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vizu-disain/vizu/internal/config"
	"github.com/vizu-disain/vizu/internal/manifest"
	"github.com/vizu-disain/vizu/internal/updater"
)

var (
	doctorConfig   bool
	doctorState    bool
	doctorInstall  bool
	doctorRemote   bool
	doctorManifest string
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorConfig, "check-config", false, "Verify the config file and values")
	doctorCmd.Flags().BoolVar(&doctorState, "check-state", false, "Verify the state backend opens and is writable")
	doctorCmd.Flags().BoolVar(&doctorInstall, "check-install", false, "Verify the install path and installed version")
	doctorCmd.Flags().BoolVar(&doctorRemote, "check-remote", false, "Fetch and validate the remote manifest")
	doctorCmd.Flags().StringVar(&doctorManifest, "check-manifest", "", "Validate a manifest file at the given path")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the update setup",
	Long:  `Run diagnostic checks on the configuration, state store, install path and release manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		ctx := cmd.Context()

		if doctorManifest != "" {
			return runManifestCheck(w, doctorManifest)
		}

		all := !(doctorConfig || doctorState || doctorInstall || doctorRemote)
		failed := 0
		if all || doctorConfig {
			failed += runConfigCheck(w)
		}
		if all || doctorState {
			failed += runStateCheck(ctx, w)
		}
		if all || doctorInstall {
			failed += runInstallCheck(w)
		}
		if all || doctorRemote {
			failed += runRemoteCheck(ctx, w)
		}
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func runConfigCheck(w io.Writer) int {
	fmt.Fprintln(w, "Config check:")
	failed := 0
	if _, err := os.Stat(config.FilePath()); err != nil {
		fmt.Fprintf(w, "  [INFO] %s not found, using defaults\n", config.FilePath())
	} else {
		fmt.Fprintf(w, "  [ OK ] %s\n", config.FilePath())
	}
	for _, key := range []string{config.KeyCheckInterval, config.KeyCheckTimeout} {
		if config.Duration(key, 0) == 0 {
			fmt.Fprintf(w, "  [FAIL] %s=%q is not a positive duration\n", key, config.Get(key))
			failed++
		}
	}
	if err := manifest.CheckDownloadURL(config.Get(config.KeyManifestURL)); err != nil {
		fmt.Fprintf(w, "  [FAIL] manifest_url: %v\n", err)
		failed++
	}
	if failed == 0 {
		fmt.Fprintln(w, "  [ OK ] values are valid")
	}
	return failed
}

func runStateCheck(ctx context.Context, w io.Writer) int {
	fmt.Fprintln(w, "State check:")
	env, err := newEnvironment(ctx)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	defer env.Close()

	backend := config.Get(config.KeyStateBackend)
	fmt.Fprintf(w, "  [ OK ] %s backend at %s\n", backend, config.StateDir())
	if st := env.checker.State(ctx, env.packageID); st != nil {
		fmt.Fprintf(w, "  [INFO] last check %s (remote %s)\n", st.LastCheckedAt.Format("2006-01-02 15:04"), st.LastResult.RemoteVersion)
	} else {
		fmt.Fprintln(w, "  [INFO] no check recorded yet")
	}
	return 0
}

func runInstallCheck(w io.Writer) int {
	fmt.Fprintln(w, "Install check:")
	path := config.Get(config.KeyInstallPath)
	if path == "" {
		fmt.Fprintln(w, "  [WARN] install_path not set")
		return 0
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(w, "  [FAIL] %s is not a directory\n", path)
		return 1
	}
	fmt.Fprintf(w, "  [ OK ] %s\n", path)

	// The staging directory is created next to the install.
	probe, err := os.MkdirTemp(filepath.Dir(path), ".vizu-doctor-*")
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s is not writable: %v\n", filepath.Dir(path), err)
		return 1
	}
	os.Remove(probe)

	fmt.Fprintf(w, "  [ OK ] installed version %s\n", detectVersion(path, config.Get(config.KeyPackage)))
	return 0
}

func runRemoteCheck(ctx context.Context, w io.Writer) int {
	fmt.Fprintln(w, "Remote check:")
	env, err := newEnvironment(ctx)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	defer env.Close()

	pkg := env.installedPackage("", "")
	res := env.checker.CheckForUpdate(ctx, pkg.Identifier, pkg.CurrentVersion, env.manifestURL)
	if res.Err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", updater.KindOf(res.Err), res.Err)
		return 1
	}
	fmt.Fprintf(w, "  [ OK ] %s serves version %s\n", env.manifestURL, res.RemoteVersion)
	if res.Manifest.SHA256 == "" {
		fmt.Fprintln(w, "  [WARN] manifest has no sha256; packages are not checksum-verified")
	}
	return 0
}

func runManifestCheck(w io.Writer, path string) error {
	fmt.Fprintf(w, "Manifest validation: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	// Validate against JSON Schema.
	result, err := manifest.Validate(data)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	if result.Valid {
		m, err := manifest.Parse(data)
		if err != nil {
			fmt.Fprintf(w, "  [FAIL] %v\n", err)
			return err
		}
		fmt.Fprintf(w, "  [ OK ] Valid manifest: %s (v%s)\n", m.DownloadURL, m.Version)
		return nil
	}

	// Report validation issues.
	fmt.Fprintf(w, "  [FAIL] %d validation issue(s):\n", len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Path != "" {
			fmt.Fprintf(w, "    - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(w, "    - %s\n", issue.Message)
		}
	}
	return fmt.Errorf("manifest %s has %d validation issue(s)", path, len(result.Issues))
}
