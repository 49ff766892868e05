package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/wind-harvest/internal/api/http"
	"github.com/i474232898/wind-harvest/internal/config"
	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:          "wind-harvest",
		Short:        "Harvest GFS wind snapshots and serve them over HTTP",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.AddCommand(serve, newHarvestCmd(), newSweepCmd(), newResolveCmd())
	return root
}

func setup() (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return build(cfg)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic harvester and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup()
			if err != nil {
				return err
			}
			defer c.close()

			// Harvest and sweep on a fixed period; the first cycle runs at start.
			sched := scheduler.New(c.engine, c.sweeper, nil, c.cfg.HarvestInterval, c.log)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			app := httpapi.NewApp(c.cfg.AllowedOrigins)
			httpapi.RegisterRoutes(app, c.resolver, c.store)
			httpapi.RegisterMetrics(app, c.registry)

			go func() {
				c.log.Info("listening", zap.String("port", c.cfg.Port))
				if err := app.Listen(":" + c.cfg.Port); err != nil {
					c.log.Error("fiber server stopped", zap.Error(err))
				}
			}()

			// Wait for termination signal
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-ctx.Done()
			c.log.Info("shutting down; waiting for a running harvest cycle")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				c.log.Warn("error during shutdown", zap.Error(err))
			}
			return nil
		},
	}
}

func newHarvestCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run one harvest cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup()
			if err != nil {
				return err
			}
			defer c.close()

			anchor := time.Now().UTC()
			if at != "" {
				if anchor, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			report, err := c.engine.Harvest(cmd.Context(), anchor)
			converted := make([]string, 0, len(report.Converted))
			for _, s := range report.Converted {
				converted = append(converted, s.String())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "outcome=%s fetches=%d converted=%v\n", report.Outcome, report.Fetches, converted)
			return err
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "anchor time (RFC3339); defaults to now")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete snapshots older than the retention max age",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup()
			if err != nil {
				return err
			}
			defer c.close()

			report, err := c.sweeper.Sweep()
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}
}

func newResolveCmd() *cobra.Command {
	var (
		target    string
		limitDays float64
	)
	cmd := &cobra.Command{
		Use:       "resolve latest|nearest",
		Short:     "Print the stamp a query would be served from",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"latest", "nearest"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup()
			if err != nil {
				return err
			}
			defer c.close()

			q := forecast.Latest()
			if args[0] == "nearest" {
				t, err := time.Parse(time.RFC3339, target)
				if err != nil {
					return fmt.Errorf("invalid --time: %w", err)
				}
				q = forecast.Nearest(t, time.Duration(limitDays*float64(24*time.Hour)))
			}

			s, err := c.resolver.Resolve(q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "time", "", "target time for nearest (RFC3339)")
	cmd.Flags().Float64Var(&limitDays, "limit", 0, "search limit in days for nearest")
	return cmd
}
