package storage

import (
	"strconv"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

// ReservoirCSVHeader is the header of storico_invasi.csv
var ReservoirCSVHeader = []string{"data", "diga", "capacita_max", "volume_attuale", "riempimento_perc", "pioggia_mm"}

// MergeReservoirs stores records under date in the JSON file at path,
// replacing any previous records for that date. existed reports whether the
// date was already present.
func MergeReservoirs(path, date string, records []entities.Reservoir) (existed bool, err error) {
	if len(records) == 0 {
		return false, &entities.PersistError{Path: path, Err: ErrEmptyPayload}
	}
	history := map[string][]entities.Reservoir{}
	if _, err := ReadJSON(path, &history); err != nil {
		return false, err
	}
	if history == nil {
		history = map[string][]entities.Reservoir{}
	}
	_, existed = history[date]
	history[date] = records
	return existed, WriteJSON(path, history)
}

// ReservoirRows renders records as CSV rows matching ReservoirCSVHeader
func ReservoirRows(records []entities.Reservoir) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date,
			r.DamName,
			formatFloat(r.MaxCapacity),
			formatFloat(r.CurrentVolume),
			formatFloat(r.FillPercentage),
			formatFloat(r.RainfallMM),
		})
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
