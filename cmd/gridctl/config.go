package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridscope/internal/config"
	"gridscope/internal/ui"
)

func configCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the gridscope config file",
	}
	cmd.AddCommand(configShowCmd(opts), configInitCmd())
	return cmd
}

func configShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the config in effect and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.FindConfigPath()
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path == "" {
				fmt.Fprintf(out, "  %s no config file found, using defaults\n", ui.WarnIcon())
			} else {
				fmt.Fprintf(out, "  Path:   %s\n", path)
			}
			fmt.Fprintln(out, cfg.Summary())
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s wrote %s\n", ui.StatusIcon(true), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Where to write (default: the user config directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
