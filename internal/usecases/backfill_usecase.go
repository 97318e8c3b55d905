package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/extract"
	"github.com/abelzeko/allerta-bot/internal/storage"
	"github.com/abelzeko/allerta-bot/internal/workerpool"
)

// BackfillReport summarizes a backfill run
type BackfillReport struct {
	Stored  int
	Skipped int
	Missing int
	Failed  int
}

// BackfillUseCase rebuilds the bulletin archive from the date-named PDFs
type BackfillUseCase struct {
	source   BulletinSource
	layouts  extract.Layouts
	archive  *storage.Archive
	store    BulletinStore
	workers  int
	timeout  time.Duration
	location *time.Location
}

// NewBackfillUseCase creates a new backfill use case. store may be nil.
func NewBackfillUseCase(source BulletinSource, layouts extract.Layouts, archive *storage.Archive, store BulletinStore,
	workers int, timeout time.Duration, loc *time.Location) *BackfillUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &BackfillUseCase{
		source:   source,
		layouts:  layouts,
		archive:  archive,
		store:    store,
		workers:  workers,
		timeout:  timeout,
		location: loc,
	}
}

// Days lists the calendar days from from to to, both included
func Days(from, to time.Time) []time.Time {
	var days []time.Time
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, from.Location())
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Run archives every day between from and to that is not in the index yet.
// Days without a published PDF are counted as missing, other failures are
// logged and counted; only an index write failure fails the run.
func (uc *BackfillUseCase) Run(ctx context.Context, from, to time.Time) (BackfillReport, error) {
	var report BackfillReport
	known, err := uc.archive.Days()
	if err != nil {
		return report, err
	}

	var todo []time.Time
	for _, day := range Days(from.In(uc.location), to.In(uc.location)) {
		if known[day.Format(time.DateOnly)] {
			report.Skipped++
			continue
		}
		todo = append(todo, day)
	}
	slog.Info("backfill: starting", "days", len(todo), "already_archived", report.Skipped)

	results := workerpool.Run(ctx, todo, uc.workers, uc.timeout, uc.archiveDay)

	var entries []entities.IndexEntry
	for _, r := range results {
		var ferr *entities.FetchError
		switch {
		case r.Err == nil:
			entries = append(entries, r.Value)
			report.Stored++
		case errors.As(r.Err, &ferr) && ferr.StatusCode == http.StatusNotFound:
			report.Missing++
		default:
			slog.Warn("backfill: day failed", "day", r.Item.Format(time.DateOnly), "error", r.Err)
			report.Failed++
		}
	}

	if err := uc.archive.MergeIndex(entries...); err != nil {
		return report, fmt.Errorf("failed to update archive index: %w", err)
	}
	slog.Info("backfill: done", "stored", report.Stored, "missing", report.Missing, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// archiveDay writes one day file; the index is merged once by Run
func (uc *BackfillUseCase) archiveDay(ctx context.Context, day time.Time) (entities.IndexEntry, error) {
	pdfURL := uc.source.PDFURLForDay(day)
	data, err := uc.source.DownloadPDF(ctx, pdfURL)
	if err != nil {
		return entities.IndexEntry{}, err
	}
	b, err := extract.ParseBulletin(data, uc.layouts, pdfURL, day)
	if err != nil {
		return entities.IndexEntry{}, err
	}
	entry, err := uc.archive.WriteDay(day, b.Zones)
	if err != nil {
		return entry, err
	}
	if uc.store != nil {
		if err := uc.store.SaveBulletin(b); err != nil {
			slog.Warn("backfill: failed to store bulletin", "day", entry.Day, "error", err)
		}
	}
	return entry, nil
}

// SyncUseCase archives the bulletin published by another instance
type SyncUseCase struct {
	source   BulletinSource
	url      string
	archive  *storage.Archive
	store    BulletinStore
	location *time.Location
}

// NewSyncUseCase creates a new sync use case. store may be nil.
func NewSyncUseCase(source BulletinSource, url string, archive *storage.Archive, store BulletinStore, loc *time.Location) *SyncUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &SyncUseCase{source: source, url: url, archive: archive, store: store, location: loc}
}

// Run downloads the published record and stores it under its bulletin date
func (uc *SyncUseCase) Run(ctx context.Context) (string, error) {
	b, err := uc.source.FetchPublished(ctx, uc.url)
	if err != nil {
		return "", err
	}
	day, err := b.IssueDate(uc.location)
	if err != nil {
		return "", &entities.ParseError{Source: uc.url, Reason: "invalid bulletin date " + b.Date, Err: err}
	}
	entry, err := uc.archive.Store(day, b.Zones)
	if err != nil {
		return "", err
	}
	if uc.store != nil {
		if err := uc.store.SaveBulletin(b); err != nil {
			return "", fmt.Errorf("failed to store bulletin: %w", err)
		}
	}
	slog.Info("sync: archived", "day", entry.Day, "max", entry.MaxCriticality)
	return entities.OutcomeOK, nil
}
