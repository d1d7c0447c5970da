package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldlineapp/fieldline/internal/series"
)

func newHorizonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "horizon",
		Short: "Materialization horizon maintenance",
	}

	cmd.AddCommand(newHorizonExtendCmd())
	cmd.AddCommand(newHorizonDaemonCmd())
	return cmd
}

func newHorizonExtendCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		seriesID   string
	)

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Extend materialization to the configured horizon",
		Long: `Materializes occurrences up to the configured horizon. With --series,
extends one series; without it, sweeps every active series across all
tenants.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHorizonExtend(cmd, configPath, tenant, seriesID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required with --series)")
	cmd.Flags().StringVar(&seriesID, "series", "", "extend a single series")
	return cmd
}

func runHorizonExtend(cmd *cobra.Command, configPath, tenant, seriesID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	horizon := horizonTime(cfg)

	if seriesID != "" {
		if tenant == "" {
			return fmt.Errorf("--tenant is required with --series")
		}
		res, err := series.Materialize(gormDB, tenant, seriesID, horizon, cfg.Horizon.MaxOccurrences)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Materialized %d occurrences for %s", res.Created, seriesID)
		if res.Truncated {
			fmt.Fprintf(out, " (truncated at cap %d)", cfg.Horizon.MaxOccurrences)
		}
		fmt.Fprintln(out)
		return nil
	}

	res, err := series.ExtendAll(gormDB, horizon, cfg.Horizon.MaxOccurrences)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Swept %d series: created %d occurrences, %d truncated, %d failed\n",
		res.Series, res.Created, res.Truncated, res.Failed)
	return nil
}

func newHorizonDaemonCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the horizon maintenance daemon",
		Long: `Runs the horizon sweep on the configured cron schedule until
interrupted. Each sweep extends every active series to the configured
horizon so the calendar never runs out of materialized occurrences.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHorizonDaemon(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	return cmd
}

func runHorizonDaemon(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	sweep := func() {
		res, err := series.ExtendAll(gormDB, horizonTime(cfg), cfg.Horizon.MaxOccurrences)
		if err != nil {
			log.Error("horizon sweep finished with errors",
				zap.Int("series", res.Series),
				zap.Int("failed", res.Failed),
				zap.Error(err),
			)
			return
		}
		log.Info("horizon sweep complete",
			zap.Int("series", res.Series),
			zap.Int("created", res.Created),
			zap.Int("truncated", res.Truncated),
		)
	}

	// Run once immediately, then on schedule.
	sweep()

	c := cron.New()
	if _, err := c.AddFunc(cfg.Horizon.Cron, sweep); err != nil {
		return fmt.Errorf("cron schedule %q: %w", cfg.Horizon.Cron, err)
	}
	c.Start()
	log.Info("horizon daemon started", zap.String("schedule", cfg.Horizon.Cron))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	<-c.Stop().Done()
	log.Info("horizon daemon stopped")
	return nil
}
