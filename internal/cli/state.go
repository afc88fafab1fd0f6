package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/vizu-disain/vizu/internal/store"
)

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
	stateCmd.AddCommand(stateListCmd)
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect recorded update-check state",
}

// stateView is the YAML shape printed by `state show`.
type stateView struct {
	Package       string `yaml:"package"`
	LastCheckedAt string `yaml:"last_checked_at,omitempty"`
	NextCheckAt   string `yaml:"next_check_at,omitempty"`
	HasUpdate     bool   `yaml:"has_update"`
	Current       string `yaml:"current_version,omitempty"`
	Remote        string `yaml:"remote_version,omitempty"`
	DownloadURL   string `yaml:"download_url,omitempty"`
	MinimumHost   string `yaml:"minimum_host_version,omitempty"`
	Changelog     string `yaml:"changelog,omitempty"`
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last recorded check for the configured package",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newEnvironment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		view := stateView{Package: env.packageID}
		if st := env.checker.State(ctx, env.packageID); st != nil {
			view.LastCheckedAt = st.LastCheckedAt.Format(time.RFC3339)
			view.NextCheckAt = st.LastCheckedAt.Add(env.interval).Format(time.RFC3339)
			view.HasUpdate = st.LastResult.HasUpdate
			view.Current = st.LastResult.CurrentVersion
			view.Remote = st.LastResult.RemoteVersion
			if m := st.CachedManifest; m != nil {
				view.DownloadURL = m.DownloadURL
				view.MinimumHost = m.MinimumHostVersion
				view.Changelog = m.Changelog
			}
		}

		data, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("marshaling state: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the last check so the next one runs immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newEnvironment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.checker.Forget(ctx, env.packageID); err != nil {
			return fmt.Errorf("clearing state: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared update state for %s\n", env.packageID)
		return nil
	},
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every package with recorded state (sqlite backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newEnvironment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		db, ok := env.store.(*store.Store)
		if !ok {
			return fmt.Errorf("state list requires state_backend=sqlite")
		}
		entries, err := db.List(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(w, "No recorded state.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%-24s %-12s %s\n", e.PackageID, e.RemoteVersion, e.LastCheckedAt.Format(time.RFC3339))
		}
		return nil
	},
}
