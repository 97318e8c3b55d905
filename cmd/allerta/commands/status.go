package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusLimit *int

func init() {
	statusLimit = statusCmd.Flags().Int("limit", 20, "Number of runs to show.")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [--limit <n>]",
	Short: "Shows the latest bulletin and the most recent job runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := application.Repo
		loc := application.Config.Location

		b, err := repo.GetLatestBulletin()
		if err != nil {
			return err
		}
		if b != nil {
			fmt.Fprintf(os.Stdout, "Latest bulletin: %s (%s)\n", b.Date, b.URL)
		} else {
			fmt.Fprintln(os.Stdout, "No bulletin stored yet")
		}

		runs, err := repo.GetRecentRuns(*statusLimit)
		if err != nil {
			return err
		}
		renderRuns(os.Stdout, runs, loc)
		return nil
	},
}

func renderRuns(w io.Writer, runs []entities.Run, loc *time.Location) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Job", "Outcome", "Started", "Duration", "Error"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.Job,
			r.Outcome,
			r.StartedAt.In(loc).Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Error,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
