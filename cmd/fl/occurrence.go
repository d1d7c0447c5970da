package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldlineapp/fieldline/internal/series"
)

func newOccurrenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "occurrence",
		Short: "Occurrence management commands",
	}

	cmd.AddCommand(newOccurrenceStatusCmd())
	cmd.AddCommand(newOccurrenceMoveCmd())
	cmd.AddCommand(newOccurrenceOverrideCmd())
	return cmd
}

func newOccurrenceStatusCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		cost       float64
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change an occurrence's status",
		Long:  "Transitions one occurrence through its lifecycle: scheduled, in_progress, completed, cancelled.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			opts := series.StatusOpts{CompletionNotes: notes}
			if cmd.Flags().Changed("cost") {
				opts.ActualCost = &cost
			}

			occ, err := series.SetOccurrenceStatus(gormDB, tenant, args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Occurrence %s is now %s\n", occ.ID, occ.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().Float64Var(&cost, "cost", 0, "actual cost, recorded on completion")
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newOccurrenceMoveCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		start      string
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a single occurrence to a new start time",
		Long:  "Moves one occurrence to a new UTC start instant, preserving its duration. The series rule is unaffected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("parse --start %q: %w", start, err)
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			occ, err := series.MoveOccurrence(gormDB, tenant, args[0], at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved occurrence %s to %s\n",
				occ.ID, occ.StartAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&start, "start", "", "new start instant, RFC 3339 (required)")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("start")
	return cmd
}

func newOccurrenceOverrideCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		title      string
		desc       string
		cost       float64
	)

	cmd := &cobra.Command{
		Use:   "override <id>",
		Short: "Set per-occurrence display overrides",
		Long:  "Overrides title, description, or estimated cost on one occurrence without touching the series template.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := series.OverrideOpts{}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &desc
			}
			if cmd.Flags().Changed("cost") {
				opts.EstimatedCost = &cost
			}
			if opts.Title == nil && opts.Description == nil && opts.EstimatedCost == nil {
				return fmt.Errorf("no fields to override; use --title, --description, or --cost")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			occ, err := series.SetOccurrenceOverrides(gormDB, tenant, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated overrides on occurrence %s\n", occ.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "override title")
	cmd.Flags().StringVar(&desc, "description", "", "override description")
	cmd.Flags().Float64Var(&cost, "cost", 0, "override estimated cost")
	cmd.MarkFlagRequired("tenant")
	return cmd
}
