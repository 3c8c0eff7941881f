package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dukerupert/praxisbackup/internal/backup"
)

// RunCmd returns the run command.
func RunCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backup invocation now",
		Long: `Back up every due schedule once, exactly as the cron trigger would, and
print the per-schedule results. Exits non-zero when any schedule failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.server.Runner().Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				fmt.Fprintln(out, string(data))
			} else {
				printBatch(out, result)
			}

			if n := failedCount(result); n > 0 {
				return fmt.Errorf("%d of %d schedules failed", n, result.Processed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func printBatch(w io.Writer, b *backup.BatchResult) {
	header := fmt.Sprintf("Processed %d schedule(s)", b.Processed)
	if b.Fallback {
		header += " " + color.New(color.FgYellow).Sprint("(fallback)")
	}
	fmt.Fprintln(w, header)
	if len(b.Repaired) > 0 {
		fmt.Fprintf(w, "Repaired %d stale schedule(s)\n", len(b.Repaired))
	}
	fmt.Fprintln(w)

	for _, r := range b.Results {
		fmt.Fprintf(w, "  %s %s\n", statusLabel(r), r.ScheduleID)
		if r.Status == backup.StatusFailed {
			fmt.Fprintf(w, "      %s\n", r.Error)
			continue
		}
		fmt.Fprintf(w, "      backup %s: %d rows in %d tables\n", r.BackupID, r.TotalRows, r.TablesCount)
		if r.Verification != nil {
			for _, e := range r.Verification.Errors {
				fmt.Fprintf(w, "      - %s\n", e)
			}
		}
	}
}

func statusLabel(r backup.ScheduleResult) string {
	switch {
	case r.Status == backup.StatusFailed:
		return color.New(color.FgRed).Sprint("FAILED    ")
	case r.Verification != nil && !r.Verification.Verified:
		return color.New(color.FgYellow).Sprint("UNVERIFIED")
	default:
		return color.New(color.FgGreen).Sprint("OK        ")
	}
}

func failedCount(b *backup.BatchResult) int {
	n := 0
	for _, r := range b.Results {
		if r.Status == backup.StatusFailed {
			n++
		}
	}
	return n
}
