package storage

import (
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

const indexFile = "index.json"

// Archive stores one bulletin per day under Dir/YYYY/MM/DD.json and keeps
// Dir/index.json listing every stored day.
type Archive struct {
	Dir string
	mu  sync.Mutex
}

// NewArchive returns an archive rooted at dir
func NewArchive(dir string) *Archive {
	return &Archive{Dir: dir}
}

// DayPath returns the relative path of the file for day
func DayPath(day time.Time) string {
	return filepath.ToSlash(filepath.Join(
		strconv.Itoa(day.Year()),
		day.Format("01"),
		day.Format("02")+".json",
	))
}

// WriteDay stores the zones of one day and returns the index entry for it.
// The index itself is not touched, see MergeIndex.
func (a *Archive) WriteDay(day time.Time, zones map[string]entities.ZoneRisk) (entities.IndexEntry, error) {
	rel := DayPath(day)
	path := filepath.Join(a.Dir, filepath.FromSlash(rel))
	if len(zones) == 0 {
		return entities.IndexEntry{}, &entities.PersistError{Path: path, Err: ErrEmptyPayload}
	}

	record := entities.ArchivedBulletin{
		Date:  day.Format(entities.BulletinDateLayout),
		Zones: zones,
	}
	if err := WriteJSON(path, record); err != nil {
		return entities.IndexEntry{}, err
	}

	max := entities.Green
	for _, z := range zones {
		max = entities.MaxCriticality(max, z.Today)
	}
	// File is relative to index.json
	return entities.IndexEntry{Day: day.Format(time.DateOnly), File: rel, MaxCriticality: max}, nil
}

// LoadIndex returns the index entries, empty when the index does not exist yet
func (a *Archive) LoadIndex() ([]entities.IndexEntry, error) {
	var entries []entities.IndexEntry
	if _, err := ReadJSON(filepath.Join(a.Dir, indexFile), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Days returns the set of days present in the index
func (a *Archive) Days() (map[string]bool, error) {
	entries, err := a.LoadIndex()
	if err != nil {
		return nil, err
	}
	days := make(map[string]bool, len(entries))
	for _, e := range entries {
		days[e.Day] = true
	}
	return days, nil
}

// MergeIndex adds entries to the index. An entry for a day already present
// replaces the old one, so re-running a day never duplicates it.
func (a *Archive) MergeIndex(entries ...entities.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.LoadIndex()
	if err != nil {
		return err
	}
	byDay := make(map[string]entities.IndexEntry, len(current)+len(entries))
	for _, e := range current {
		byDay[e.Day] = e
	}
	for _, e := range entries {
		byDay[e.Day] = e
	}

	merged := make([]entities.IndexEntry, 0, len(byDay))
	for _, e := range byDay {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Day < merged[j].Day })
	return WriteJSON(filepath.Join(a.Dir, indexFile), merged)
}

// Store writes one day and records it in the index
func (a *Archive) Store(day time.Time, zones map[string]entities.ZoneRisk) (entities.IndexEntry, error) {
	entry, err := a.WriteDay(day, zones)
	if err != nil {
		return entry, err
	}
	return entry, a.MergeIndex(entry)
}
