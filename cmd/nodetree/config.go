package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/nodetree/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify nodetree configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/nodetree/config.yaml
Project-specific overrides can be placed in .nodetree.yaml`,
	Args: cobra.MaximumNArgs(2),
	// A broken config must stay fixable from here.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch len(args) {
	case 0:
		settings, err := config.Settings()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		for _, kv := range settings {
			fmt.Fprintf(out, "%s: %s\n", kv[0], kv[1])
		}
		return nil
	case 1:
		value, err := config.Lookup(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, value)
		return nil
	default:
		if err := config.SetValue(args[0], args[1]); err != nil {
			return err
		}
		shown := args[1]
		if strings.EqualFold(args[0], "provider.api_key") {
			shown = config.MaskAPIKey(shown)
		}
		fmt.Fprintf(out, "%s Set %s = %s (%s)\n", color.GreenString("✓"), args[0], shown, config.GetUserConfigPath())
		return nil
	}
}
