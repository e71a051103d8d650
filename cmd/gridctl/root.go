package main

import (
	"github.com/spf13/cobra"

	"gridscope/internal/config"
	"gridscope/internal/ui"
)

var version = "0.1.0"

type rootOptions struct {
	configPath string
	noColor    bool
}

// loadConfig reads --config when given, otherwise the usual search path
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		cfg, _, err := config.LoadFromPath(o.configPath)
		return cfg, err
	}
	cfg, _, err := config.Load()
	return cfg, err
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "gridctl",
		Short: "gridctl: inspect and lay out power-network topologies",
		Long: ui.Brand.Sprint("gridctl") + " works with the same case files and backend as the gridscope server\n" +
			ui.Subtle.Sprint("Inspect a case, run the layout headless, or fetch from the computation backend"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				ui.DisableColor()
			}
		},
	}
	root.SetVersionTemplate("gridctl {{ .Version }}\n")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: search the usual locations)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		inspectCmd(),
		layoutCmd(opts),
		fetchCmd(opts),
		configCmd(opts),
	)
	return root
}
