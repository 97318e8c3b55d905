package commands

import (
	"github.com/abelzeko/allerta-bot/internal/app"
	"github.com/spf13/cobra"
)

var jobCommands = []struct {
	job   string
	short string
}{
	{app.JobBulletin, "Downloads the latest criticality bulletin and notifies when it changed."},
	{app.JobSync, "Archives the bulletin JSON published by the mirror repository."},
	{app.JobSensors, "Scrapes the real-time sensor readings of every category."},
	{app.JobStations, "Adds coordinates of newly seen stations to the gazetteer."},
	{app.JobHistory, "Downloads the recent history of every station."},
	{app.JobDams, "Scrapes the reservoir levels and appends them to the CSV history."},
	{app.JobAvalanche, "Fetches the Meteomont avalanche bulletin."},
	{app.JobRadar, "Downloads and colours the national radar layer."},
	{app.JobMaps, "Builds the municipality and zone layers from the latest bulletin."},
}

func init() {
	for _, jc := range jobCommands {
		rootCmd.AddCommand(newJobCommand(jc.job, jc.short))
	}
}

func newJobCommand(job, short string) *cobra.Command {
	return &cobra.Command{
		Use:   job,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.RunJob(cmd.Context(), job)
		},
	}
}
