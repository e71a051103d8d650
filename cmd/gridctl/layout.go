package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridscope/internal/adapter"
	"gridscope/internal/config"
	"gridscope/internal/layout"
	"gridscope/internal/loader"
	"gridscope/internal/topology"
	"gridscope/internal/ui"
	"gridscope/internal/watcher"
)

// DefaultTicks bounds a headless layout run
const DefaultTicks = 300

func layoutCmd(opts *rootOptions) *cobra.Command {
	var (
		ticks         int
		width, height float64
		outPath       string
		watch         bool
	)

	cmd := &cobra.Command{
		Use:   "layout <file>",
		Short: "Run the force layout headless and print final positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks <= 0 {
				return fmt.Errorf("--ticks must be positive")
			}
			if width <= 0 || height <= 0 {
				return fmt.Errorf("--width and --height must be positive")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			render := func() error {
				return renderLayout(out, args[0], cfg, width, height, ticks, outPath)
			}
			if err := render(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(out, "\n  %s\n", ui.Subtle.Sprintf("watching %s, Ctrl-C to stop", args[0]))
			return watchLayout(ctx, args[0], cfg.NewLogger(cmd.ErrOrStderr()), func() {
				if err := render(); err != nil {
					fmt.Fprintf(out, "  %s %v\n", ui.StatusIcon(false), err)
				}
			})
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", DefaultTicks, "Maximum number of simulation steps")
	cmd.Flags().Float64Var(&width, "width", config.DefaultWidth, "Viewport width")
	cmd.Flags().Float64Var(&height, "height", config.DefaultHeight, "Viewport height")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the laid-out payload to this file (.json or .yaml)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run the layout whenever the file changes")
	return cmd
}

// renderLayout loads path, settles it and prints the final positions
func renderLayout(out io.Writer, path string, cfg *config.Config, width, height float64, ticks int, outPath string) error {
	res, err := loader.LoadFile(path)
	if err != nil {
		return err
	}

	store, run, err := settle(res, cfg, width, height, ticks)
	if err != nil {
		return err
	}

	ui.Banner(out, fmt.Sprintf("%s (%s profile)", path, res.Scale))
	ui.Positions(out, store.Nodes())

	status := ui.StatusIcon(!run.active)
	fmt.Fprintf(out, "\n  %s %d ticks, alpha %.4f\n", status, run.ticks, run.alpha)

	if outPath != "" {
		if err := loader.WriteFile(outPath, store.Payload(res.Case)); err != nil {
			return err
		}
		fmt.Fprintf(out, "  wrote %s\n", outPath)
	}
	return nil
}

// watchLayout calls rerun after each burst of writes to path until ctx ends
func watchLayout(ctx context.Context, path string, log *slog.Logger, rerun func()) error {
	return watcher.New(path, rerun).WithLogger(log).Watch(ctx)
}

type layoutRun struct {
	ticks  int
	alpha  float64
	active bool
}

// settle installs res into a fresh store and steps the engine until it
// cools or maxTicks is reached
func settle(res *adapter.Result, cfg *config.Config, width, height float64, maxTicks int) (*topology.Store, layoutRun, error) {
	store := topology.New()
	if err := store.ReplaceAll(res.Nodes, res.Links); err != nil {
		return nil, layoutRun{}, err
	}
	if err := store.ResolveReferences(); err != nil {
		return nil, layoutRun{}, err
	}

	profiles := cfg.LayoutProfiles()
	engine := layout.New(profiles.For(res.Scale), cfg.LayoutParams(), width/2, height/2)
	engine.Reseed(store.LayoutView())

	for engine.Ticks() < maxTicks && engine.Tick() {
	}

	return store, layoutRun{
		ticks:  engine.Ticks(),
		alpha:  engine.Alpha(),
		active: engine.Active(),
	}, nil
}
