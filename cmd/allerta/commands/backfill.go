package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/usecases"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	backfillFrom *string
	backfillTo   *string
)

func init() {
	backfillFrom = backfillCmd.Flags().String("from", "", "First day to archive (YYYY-MM-DD), defaults to BACKFILL_START.")
	backfillTo = backfillCmd.Flags().String("to", "", "Last day to archive (YYYY-MM-DD), defaults to today.")
	rootCmd.AddCommand(backfillCmd)
}

var backfillCmd = &cobra.Command{
	Use:   "backfill [--from YYYY-MM-DD] [--to YYYY-MM-DD]",
	Short: "Rebuilds the bulletin archive from the date-named PDFs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := application.Config
		from, err := parseDay(*backfillFrom, cfg.BackfillStart, cfg.Location)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		to, err := parseDay(*backfillTo, time.Now().In(cfg.Location), cfg.Location)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		if to.Before(from) {
			return fmt.Errorf("--to %s is before --from %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
		}

		uc := application.BackfillUseCase()
		var report usecases.BackfillReport
		err = application.Runner.Do(cmd.Context(), "backfill", func(ctx context.Context) (string, error) {
			var runErr error
			if report, runErr = uc.Run(ctx, from, to); runErr != nil {
				return "", runErr
			}
			if report.Stored == 0 {
				return entities.OutcomeSkipped, nil
			}
			return entities.OutcomeOK, nil
		})
		renderReport(os.Stdout, report)
		return err
	},
}

// parseDay reads a YYYY-MM-DD flag value, returning fallback when empty
func parseDay(v string, fallback time.Time, loc *time.Location) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	return time.ParseInLocation(time.DateOnly, v, loc)
}

func renderReport(w io.Writer, r usecases.BackfillReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Stored", "Already archived", "Missing", "Failed"})
	t.AppendRow(table.Row{r.Stored, r.Skipped, r.Missing, r.Failed})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
