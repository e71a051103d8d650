package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gridscope/internal/loader"
	"gridscope/internal/ui"
)

func inspectCmd() *cobra.Command {
	var showLinks bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize a case file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ui.Banner(out, args[0])
			ui.Summary(out, res)

			if showLinks && len(res.Links) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(res.Links))
				for _, l := range res.Links {
					id := l.ID
					if id == "" {
						id = ui.Subtle.Sprint("-")
					}
					rows = append(rows, []string{
						id,
						l.Source.ID(),
						l.Target.ID(),
						fmt.Sprintf("%.4f", l.Resistance),
						fmt.Sprintf("%.4f", l.Reactance),
					})
				}
				ui.Table(out, []string{"ID", "SOURCE", "TARGET", "R", "X"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showLinks, "links", false, "List every link")
	return cmd
}
