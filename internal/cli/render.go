package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vizu-disain/vizu/internal/hooks"
	"github.com/vizu-disain/vizu/internal/plugin"
)

var (
	renderCommerce bool
	renderFilter   string
)

func init() {
	renderCmd.Flags().BoolVar(&renderCommerce, "commerce", false, "Render as a shop site (enables the cart text override)")
	renderCmd.Flags().StringVar(&renderFilter, "filter", "", "Pass the text through the named filter instead of expanding shortcodes")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render [text]",
	Short: "Preview the plugin's shortcodes and filters",
	Long: `Expands the plugin's shortcodes in the given text (or stdin) the way a
site would render them.

  vizu render '© [vizu_year] Vizu Disain'
  vizu render --commerce --filter woocommerce_product_single_add_to_cart_text 'Add to cart'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := renderInput(cmd, args)
		if err != nil {
			return err
		}

		registry := hooks.NewRegistry()
		var opts []plugin.Option
		if renderCommerce {
			opts = append(opts, plugin.WithCommerce(registry))
		}
		if err := plugin.New(registry, opts...).Activate(); err != nil {
			return fmt.Errorf("activating plugin: %w", err)
		}
		if err := registry.DoAction(context.WithoutCancel(cmd.Context()), hooks.EventPluginsLoaded); err != nil {
			return err
		}

		var out string
		if renderFilter != "" {
			out = registry.ApplyFilters(renderFilter, text)
		} else {
			out = registry.RenderShortcodes(text)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func renderInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
