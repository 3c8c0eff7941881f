package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dukerupert/praxisbackup/internal/backup"
)

// SchedulesCmd returns the schedules command group.
func SchedulesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect and repair backup schedules",
	}
	cmd.AddCommand(schedulesDiagnoseCmd(configPath))
	cmd.AddCommand(schedulesRepairCmd(configPath))
	return cmd
}

func schedulesDiagnoseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Show each schedule's health relative to now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			diagnoses, err := a.server.Resolver().Diagnose(cmd.Context(), time.Now().In(a.cfg.Location))
			if err != nil {
				return fmt.Errorf("diagnose schedules: %w", err)
			}
			printDiagnoses(cmd.OutOrStdout(), diagnoses)
			return nil
		},
	}
}

func schedulesRepairCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Recompute next_run_at for schedules stuck more than 48h",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			repaired, err := a.server.Resolver().RepairStale(cmd.Context(), time.Now().In(a.cfg.Location))
			if err != nil {
				return fmt.Errorf("repair schedules: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(repaired) == 0 {
				fmt.Fprintln(out, "No stale schedules.")
				return nil
			}
			fmt.Fprintf(out, "Repaired %d schedule(s):\n", len(repaired))
			for _, id := range repaired {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	}
}

func printDiagnoses(w io.Writer, diagnoses []backup.Diagnosis) {
	if len(diagnoses) == 0 {
		fmt.Fprintln(w, "No schedules configured. Runs will use fallback schedules.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTENANT\tCADENCE\tNEXT RUN\tLAG\tHEALTH")
	for _, d := range diagnoses {
		s := d.Schedule
		next := "-"
		if s.NextRunAt != nil {
			next = s.NextRunAt.Format(time.RFC3339)
		}
		lag := d.Lag
		if lag == "" {
			lag = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			s.ID, s.TenantLabel(), s.ScheduleType, s.TimeOfDay, next, lag, healthLabel(d.Health))
	}
	tw.Flush()
}

func healthLabel(h backup.Health) string {
	switch h {
	case backup.HealthStale, backup.HealthMissingNextRun:
		return color.New(color.FgRed).Sprint(string(h))
	case backup.HealthDue:
		return color.New(color.FgYellow).Sprint(string(h))
	case backup.HealthInactive:
		return color.New(color.Faint).Sprint(string(h))
	default:
		return color.New(color.FgGreen).Sprint(string(h))
	}
}
