package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"MarketRadar/internal/di"
	"MarketRadar/pkg/config"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/server"
)

func newRootCmd(ctx context.Context) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "marketradar",
		Short:         "Adaptive crypto market radar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	load := func() (*server.App, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		app, err := di.InitializeApp(cfg)
		if err != nil {
			return nil, fmt.Errorf("app initialization failed: %w", err)
		}
		return app, nil
	}

	root.AddCommand(serveCmd(ctx, load))
	root.AddCommand(scanCmd(ctx, load))
	root.AddCommand(sweepCmd(ctx, load))
	root.AddCommand(resetCmd(ctx, load))
	return root
}

type appLoader func() (*server.App, error)

func serveCmd(ctx context.Context, load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}

func scanCmd(ctx context.Context, load appLoader) *cobra.Command {
	var withDepth bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one refresh cycle and print alerts and opportunities as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer shutdown(app)

			m := app.Monitor()
			if err := m.RefreshTickers(ctx); err != nil {
				return err
			}
			if withDepth {
				if err := m.RefreshInstitutional(ctx); err != nil {
					app.Logger().Warn("depth refresh failed", applogger.Error(err))
				}
			}
			m.WaitLearning()

			snap := m.Snapshot()
			out := map[string]interface{}{
				"status":          snap.Status,
				"alerts":          snap.Alerts,
				"recommendations": snap.Recommendations,
				"opportunities":   snap.Opportunities,
			}
			if withDepth {
				out["walls"] = snap.Walls
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&withDepth, "depth", false, "also fetch order books and detect walls")
	return cmd
}

func sweepCmd(ctx context.Context, load appLoader) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete predictions older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer shutdown(app)

			n, err := app.Learning().Sweep(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d predictions\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "retention window in days")
	return cmd
}

func resetCmd(ctx context.Context, load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Destroy learning state and stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer shutdown(app)

			if err := app.Monitor().Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "learning state and preferences reset")
			return nil
		},
	}
}

func shutdown(app *server.App) {
	if err := app.Shutdown(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}
