package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/fieldlineapp/fieldline/internal/config"
	"github.com/fieldlineapp/fieldline/internal/db"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/series"
)

func newSeriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Job series management commands",
	}

	cmd.AddCommand(newSeriesCreateCmd())
	cmd.AddCommand(newSeriesListCmd())
	cmd.AddCommand(newSeriesShowCmd())
	cmd.AddCommand(newSeriesRescheduleCmd())
	cmd.AddCommand(newSeriesCancelCmd())
	cmd.AddCommand(newSeriesPropagateCmd())
	cmd.AddCommand(newSeriesDeleteCmd())
	return cmd
}

func newSeriesCreateCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		title      string
		desc       string
		customer   string
		category   string
		priority   int
		cost       float64
		assignee   string
		rule       string
		startDate  string
		startTime  string
		duration   int
		zone       string
		untilDate  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job series",
		Long:  "Creates a recurring (or one-off) job series and materializes its occurrences to the configured horizon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeriesCreate(cmd, configPath, series.CreateOpts{
				TenantID:        tenant,
				Title:           title,
				Description:     desc,
				CustomerID:      customer,
				ServiceCategory: category,
				Priority:        priority,
				EstimatedCost:   cost,
				AssignedTo:      assignee,
				RRule:           rule,
				StartDate:       startDate,
				LocalStartTime:  startTime,
				DurationMinutes: duration,
				Timezone:        zone,
				UntilDate:       untilDate,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "job title (required)")
	cmd.Flags().StringVar(&desc, "description", "", "job description")
	cmd.Flags().StringVar(&customer, "customer", "", "customer ID")
	cmd.Flags().StringVar(&category, "category", "", "service category")
	cmd.Flags().IntVar(&priority, "priority", 2, "priority (0=critical ... 4=backlog)")
	cmd.Flags().Float64Var(&cost, "cost", 0, "estimated cost")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assigned technician")
	cmd.Flags().StringVar(&rule, "rrule", recurrence.OneOff, "RRULE recurrence text (default is a one-off)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "first occurrence date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&startTime, "start-time", "09:00:00", "local start time, HH:MM:SS")
	cmd.Flags().IntVar(&duration, "duration", 60, "duration in minutes")
	cmd.Flags().StringVar(&zone, "timezone", "", "IANA timezone, e.g. America/New_York (required)")
	cmd.Flags().StringVar(&untilDate, "until", "", "exclusive end date for generation, YYYY-MM-DD")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("start-date")
	cmd.MarkFlagRequired("timezone")
	return cmd
}

func runSeriesCreate(cmd *cobra.Command, configPath string, opts series.CreateOpts) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	s, res, err := series.Create(gormDB, opts, horizonTime(cfg), cfg.Horizon.MaxOccurrences)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created series %s\n", s.ID)
	fmt.Fprintf(out, "Materialized %d occurrences", res.Created)
	if res.Truncated {
		fmt.Fprintf(out, " (truncated at cap %d)", cfg.Horizon.MaxOccurrences)
	}
	fmt.Fprintln(out)
	return nil
}

func newSeriesListCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		customer   string
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeriesList(cmd, configPath, tenant, series.ListFilters{
				CustomerID: customer,
				ActiveOnly: activeOnly,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&customer, "customer", "", "filter by customer")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active series")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func runSeriesList(cmd *cobra.Command, configPath, tenant string, filters series.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	list, err := series.List(gormDB, tenant, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No series found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRULE\tSTART\tTZ\tACTIVE")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%t\n",
			s.ID, truncate(s.Title, 40), truncate(s.RRule, 30),
			s.StartDate, s.LocalStartTime, s.Timezone, s.Active)
	}
	w.Flush()
	return nil
}

func newSeriesShowCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show series details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeriesShow(cmd, configPath, tenant, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func runSeriesShow(cmd *cobra.Command, configPath, tenant, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	s, err := series.Get(gormDB, tenant, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", s.ID)
	fmt.Fprintf(out, "Title:       %s\n", s.Title)
	fmt.Fprintf(out, "Rule:        %s\n", s.RRule)
	fmt.Fprintf(out, "Start:       %s %s (%s)\n", s.StartDate, s.LocalStartTime, s.Timezone)
	fmt.Fprintf(out, "Duration:    %dm\n", s.DurationMinutes)
	fmt.Fprintf(out, "Priority:    %d\n", s.Priority)
	fmt.Fprintf(out, "Active:      %t\n", s.Active)
	if s.CustomerID != "" {
		fmt.Fprintf(out, "Customer:    %s\n", s.CustomerID)
	}
	if s.ServiceCategory != "" {
		fmt.Fprintf(out, "Category:    %s\n", s.ServiceCategory)
	}
	if s.AssignedTo != "" {
		fmt.Fprintf(out, "Assignee:    %s\n", s.AssignedTo)
	}
	if s.EstimatedCost != 0 {
		fmt.Fprintf(out, "Est. cost:   %.2f\n", s.EstimatedCost)
	}
	if s.UntilDate != nil {
		fmt.Fprintf(out, "Until:       %s\n", *s.UntilDate)
	}
	if s.LastGeneratedUntil != nil {
		fmt.Fprintf(out, "Generated:   through %s\n", s.LastGeneratedUntil.UTC().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "Generated:   never")
	}
	fmt.Fprintf(out, "Created:     %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	if s.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", s.Description)
	}
	return nil
}

func newSeriesRescheduleCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		rule       string
		startDate  string
		startTime  string
		duration   int
		zone       string
		untilDate  string
	)

	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Replace a series' timing definition",
		Long: `Replaces the recurrence rule and timing of a series. Future occurrences
that are not completed are regenerated under the new rule; past and
completed occurrences are preserved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeriesReschedule(cmd, configPath, tenant, args[0], series.RescheduleOpts{
				RRule:           rule,
				StartDate:       startDate,
				LocalStartTime:  startTime,
				DurationMinutes: duration,
				Timezone:        zone,
				UntilDate:       untilDate,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&rule, "rrule", "", "new RRULE recurrence text (required)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "new anchor date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&startTime, "start-time", "09:00:00", "new local start time, HH:MM:SS")
	cmd.Flags().IntVar(&duration, "duration", 60, "new duration in minutes")
	cmd.Flags().StringVar(&zone, "timezone", "", "new IANA timezone (required)")
	cmd.Flags().StringVar(&untilDate, "until", "", "exclusive end date, YYYY-MM-DD (empty clears)")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("rrule")
	cmd.MarkFlagRequired("start-date")
	cmd.MarkFlagRequired("timezone")
	return cmd
}

func runSeriesReschedule(cmd *cobra.Command, configPath, tenant, id string, opts series.RescheduleOpts) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	res, err := series.Reschedule(gormDB, tenant, id, opts, horizonTime(cfg), cfg.Horizon.MaxOccurrences)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rescheduled series %s\n", id)
	fmt.Fprintf(out, "Deleted %d future occurrences, created %d", res.Deleted, res.Created)
	if res.Truncated {
		fmt.Fprintf(out, " (truncated at cap %d)", cfg.Horizon.MaxOccurrences)
	}
	fmt.Fprintln(out)
	return nil
}

func newSeriesCancelCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
	)

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a series",
		Long:  "Deactivates a series and cancels its future occurrences. Completed and past work is preserved.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := series.Cancel(gormDB, tenant, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled series %s (%d occurrences cancelled)\n", args[0], n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newSeriesPropagateCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
		priority   int
		assignee   string
		cost       float64
	)

	cmd := &cobra.Command{
		Use:   "propagate <id>",
		Short: "Push template edits to future occurrences",
		Long:  "Updates series template fields and applies them to future occurrences that are still scheduled.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := series.PropagateOpts{}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("assignee") {
				opts.AssignedTo = &assignee
			}
			if cmd.Flags().Changed("cost") {
				opts.EstimatedCost = &cost
			}
			if opts.Priority == nil && opts.AssignedTo == nil && opts.EstimatedCost == nil {
				return fmt.Errorf("no fields to propagate; use --priority, --assignee, or --cost")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := series.Propagate(gormDB, tenant, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated series %s and %d future occurrences\n", args[0], n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().IntVar(&priority, "priority", 0, "new priority")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee")
	cmd.Flags().Float64Var(&cost, "cost", 0, "new estimated cost")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newSeriesDeleteCmd() *cobra.Command {
	var (
		configPath string
		tenant     string
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a series and all of its occurrences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := series.Delete(gormDB, tenant, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted series %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldline.yaml", "path to Fieldline config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Database, err)
	}

	return cfg, gormDB, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
