package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gridscope/internal/adapter"
	"gridscope/internal/backend"
	"gridscope/internal/loader"
	"gridscope/internal/ui"
)

func fetchCmd(opts *rootOptions) *cobra.Command {
	var (
		backendURL string
		caseName   string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a topology from the computation backend",
		Long: "Fetch the startup topology, or a named case with --case.\n" +
			"When the startup topology cannot be fetched, the built-in sample is shown instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if backendURL == "" {
				backendURL = cfg.Backend.URL
			}
			client := backend.New(backendURL, cfg.Backend.Timeout.Duration())
			out := cmd.OutOrStdout()

			res, err := fetch(cmd, client, caseName)
			if err != nil {
				if caseName != "" {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", ui.WarnIcon(), ui.Warn.Sprintf("grid-data failed: %v", err))
				fmt.Fprintf(out, "%s\n\n", ui.Subtle.Sprint("showing the built-in sample instead"))
				res = adapter.Sample()
			}

			ui.Banner(out, backendURL)
			ui.Summary(out, res)

			if outPath != "" {
				if err := loader.WriteFile(outPath, res.Payload()); err != nil {
					return err
				}
				fmt.Fprintf(out, "\n  wrote %s\n", outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL (default from config)")
	cmd.Flags().StringVar(&caseName, "case", "", "Predefined case to load instead of the startup topology")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the fetched payload to this file (.json or .yaml)")
	return cmd
}

func fetch(cmd *cobra.Command, client *backend.Client, caseName string) (*adapter.Result, error) {
	var (
		doc map[string]any
		err error
	)
	if caseName != "" {
		doc, err = client.LoadCase(cmd.Context(), caseName)
	} else {
		doc, err = client.GridData(cmd.Context())
	}
	if err != nil {
		return nil, err
	}
	return adapter.Convert(doc)
}
