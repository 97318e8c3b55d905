package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/extract"
	"github.com/abelzeko/allerta-bot/internal/metrics"
	"github.com/abelzeko/allerta-bot/internal/monitoring"
	"github.com/abelzeko/allerta-bot/internal/notify"
	"github.com/abelzeko/allerta-bot/internal/schedule"
	"github.com/abelzeko/allerta-bot/internal/storage"
)

// BulletinStore keeps the bulletin history
type BulletinStore interface {
	SaveBulletin(b entities.Bulletin) error
}

// BulletinOptions configures BulletinUseCase
type BulletinOptions struct {
	// OutputPath is the dati_bollettino.json file
	OutputPath string
	MapURL     string
	// ForceSend notifies even when the bulletin did not change
	ForceSend bool
	Location  *time.Location
}

// BulletinUseCase fetches the latest criticality bulletin, stores it and
// notifies subscribers when it changed
type BulletinUseCase struct {
	source   BulletinSource
	layouts  extract.Layouts
	store    BulletinStore
	archive  *storage.Archive
	telegram Broadcaster
	push     Pusher
	state    *schedule.State
	metrics  *metrics.Metrics
	reporter *monitoring.Reporter
	opts     BulletinOptions
	now      func() time.Time
}

// NewBulletinUseCase creates a new bulletin use case. store, archive,
// telegram, push and state may be nil.
func NewBulletinUseCase(source BulletinSource, layouts extract.Layouts, store BulletinStore, archive *storage.Archive,
	telegram Broadcaster, push Pusher, state *schedule.State, opts BulletinOptions) *BulletinUseCase {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &BulletinUseCase{
		source:   source,
		layouts:  layouts,
		store:    store,
		archive:  archive,
		telegram: telegram,
		push:     push,
		state:    state,
		opts:     opts,
		now:      time.Now,
	}
}

// WithMonitoring attaches metrics and error reporting
func (uc *BulletinUseCase) WithMonitoring(m *metrics.Metrics, r *monitoring.Reporter) *BulletinUseCase {
	uc.metrics = m
	uc.reporter = r
	return uc
}

// Run performs one bulletin check. It returns entities.OutcomeSkipped when
// the published bulletin is the one already stored.
func (uc *BulletinUseCase) Run(ctx context.Context) (string, error) {
	pdfURL, err := uc.source.LatestPDFURL(ctx)
	if err != nil {
		return "", err
	}
	slog.Info("bulletin: found", "url", pdfURL)

	data, err := uc.source.DownloadPDF(ctx, pdfURL)
	if err != nil {
		return "", err
	}

	now := uc.now().In(uc.opts.Location)
	b, err := extract.ParseBulletin(data, uc.layouts, pdfURL, now)
	if err != nil {
		var perr *entities.ParseError
		if errors.As(err, &perr) {
			uc.alertAdmin(pdfURL, notify.MissingFields(b))
		}
		return "", err
	}
	if missing := notify.MissingFields(b); len(missing) > 0 {
		uc.alertAdmin(pdfURL, missing)
	}

	day, err := b.IssueDate(uc.opts.Location)
	if err != nil {
		return "", &entities.ParseError{Source: pdfURL, Reason: "invalid bulletin date " + b.Date, Err: err}
	}
	if uc.state != nil {
		uc.state.MarkFound(day, now)
	}
	uc.metrics.SetMaxCriticality(b.MaxToday())

	changed, err := uc.changed(b)
	if err != nil {
		slog.Warn("bulletin: previous record unreadable, treating as new", "error", err)
		changed = true
	}
	if !changed && !uc.opts.ForceSend {
		slog.Info("bulletin: unchanged, nothing to send", "date", b.Date)
		return entities.OutcomeSkipped, nil
	}

	if err := uc.persist(day, b); err != nil {
		return "", err
	}

	uc.notify(ctx, b, data)
	return entities.OutcomeOK, nil
}

// changed compares b with the stored record by bulletin date
func (uc *BulletinUseCase) changed(b entities.Bulletin) (bool, error) {
	var prev entities.Bulletin
	found, err := storage.ReadJSON(uc.opts.OutputPath, &prev)
	if err != nil || !found {
		return true, err
	}
	return prev.Date != b.Date, nil
}

func (uc *BulletinUseCase) persist(day time.Time, b entities.Bulletin) error {
	if err := storage.WriteJSON(uc.opts.OutputPath, b); err != nil {
		return err
	}
	slog.Info("bulletin: saved", "path", uc.opts.OutputPath, "date", b.Date, "zones", len(b.Zones))

	if uc.archive != nil {
		if _, err := uc.archive.Store(day, b.Zones); err != nil {
			return fmt.Errorf("failed to archive bulletin: %w", err)
		}
	}
	if uc.store != nil {
		if err := uc.store.SaveBulletin(b); err != nil {
			return fmt.Errorf("failed to store bulletin: %w", err)
		}
	}
	return nil
}

func (uc *BulletinUseCase) notify(ctx context.Context, b entities.Bulletin, pdf []byte) {
	if uc.telegram != nil && uc.telegram.Enabled() {
		doc := &notify.Document{Name: notify.PDFFilename(b.Date), Data: pdf}
		sent := uc.telegram.Broadcast(ctx, notify.BulletinMessage(b, uc.opts.MapURL), doc)
		slog.Info("bulletin: telegram broadcast done", "chats", sent)
	}
	if uc.push != nil && uc.push.Enabled() {
		title, body := notify.PushSummary(b)
		if err := uc.push.Push(ctx, title, body, uc.opts.MapURL); err != nil {
			slog.Error("bulletin: push failed", "error", err)
			uc.reporter.Capture(err, map[string]string{"job": "bulletin", "channel": "onesignal"})
		}
	}
}

func (uc *BulletinUseCase) alertAdmin(source string, missing []string) {
	slog.Warn("bulletin: required fields missing", "source", source, "missing", missing)
	uc.reporter.Warn("bulletin fields missing", map[string]string{"job": "bulletin", "source": source})
	if uc.telegram == nil {
		return
	}
	if err := uc.telegram.AlertAdmin(notify.MissingFieldsAlert(source, missing)); err != nil {
		slog.Error("bulletin: admin alert failed", "error", err)
	}
}
