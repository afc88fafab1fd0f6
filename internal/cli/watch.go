package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vizu-disain/vizu/internal/scheduler"
	"github.com/vizu-disain/vizu/internal/updater"
)

var (
	watchCurrent string
	watchPath    string
	watchApply   bool
)

func init() {
	watchCmd.Flags().StringVar(&watchCurrent, "current", "", "Installed version (default: read from the install path)")
	watchCmd.Flags().StringVar(&watchPath, "path", "", "Install path (default: install_path from config)")
	watchCmd.Flags().BoolVar(&watchApply, "apply", false, "Install updates as soon as they are found")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check for updates every check_interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := newEnvironment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pkg := env.installedPackage(watchPath, watchCurrent)
		w := cmd.OutOrStdout()
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (%s) every %s\n", pkg.Identifier, pkg.CurrentVersion, env.interval)

		var s *scheduler.Scheduler
		onResult := func(res updater.CheckResult) {
			if res.Err != nil || !res.HasUpdate {
				return
			}
			fmt.Fprintf(w, "Update available: %s -> %s\n", pkg.CurrentVersion, res.RemoteVersion)
			if !watchApply || pkg.InstallPath == "" {
				return
			}
			if err := env.checker.ApplyUpdate(ctx, res.Manifest, pkg); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Update failed: %v\n", err)
				return
			}
			pkg.CurrentVersion = res.RemoteVersion
			s.SetCurrentVersion(res.RemoteVersion)
			fmt.Fprintf(w, "Successfully updated to %s\n", res.RemoteVersion)
		}

		s = scheduler.New(env.checker, pkg, env.manifestURL, env.interval, scheduler.WithOnResult(onResult))
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
