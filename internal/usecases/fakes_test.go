package usecases

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/notify"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
)

func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	return loc
}

// bulletinPDF renders a bulletin of date (DD/MM/YYYY) with BASI A1 at a1 today
func bulletinPDF(t *testing.T, date, a1 string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)

	doc.Text(20, 20, "BOLLETTINO DI CRITICITA DEL "+date)
	doc.Text(20, 30, "Inizio validita: "+date+" 14:00")
	doc.Text(20, 40, "Fine validita: "+date+" 24:00")

	table := func(top float64, rows [][]string) {
		for i, row := range rows {
			for j, cell := range row {
				doc.Text(20+float64(j)*40, top+float64(i)*10, cell)
			}
		}
	}
	table(60, [][]string{
		{"BASI A1", a1, "VERDE", "VERDE"},
		{"BASI A2", "VERDE", "GIALLA", "VERDE"},
	})
	table(100, [][]string{
		{"BASI A1", "VERDE", "VERDE", "VERDE"},
		{"BASI A2", "ARANCIONE", "VERDE", "VERDE"},
	})

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

type fakeBulletinSource struct {
	latest    string
	pdfs      map[string][]byte
	published entities.Bulletin
	err       error
}

func (f *fakeBulletinSource) LatestPDFURL(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.latest, nil
}

func (f *fakeBulletinSource) PDFURLForDay(day time.Time) string {
	return "https://cfd.test/Bollettino_" + day.Format("02_01_2006") + ".pdf"
}

func (f *fakeBulletinSource) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	data, ok := f.pdfs[pdfURL]
	if !ok {
		return nil, &entities.FetchError{URL: pdfURL, StatusCode: http.StatusNotFound}
	}
	return data, nil
}

func (f *fakeBulletinSource) FetchPublished(ctx context.Context, rawURL string) (entities.Bulletin, error) {
	if f.err != nil {
		return entities.Bulletin{}, f.err
	}
	return f.published, nil
}

type fakeBroadcaster struct {
	texts []string
	docs  []*notify.Document
	admin []string
	chats int
}

func (f *fakeBroadcaster) Enabled() bool { return true }

func (f *fakeBroadcaster) Broadcast(ctx context.Context, text string, doc *notify.Document) int {
	f.texts = append(f.texts, text)
	f.docs = append(f.docs, doc)
	return f.chats
}

func (f *fakeBroadcaster) AlertAdmin(text string) error {
	f.admin = append(f.admin, text)
	return nil
}

type fakePusher struct {
	titles []string
	err    error
}

func (f *fakePusher) Enabled() bool { return true }

func (f *fakePusher) Push(ctx context.Context, title, body, link string) error {
	f.titles = append(f.titles, title)
	return f.err
}

type fakeBulletinStore struct {
	mu    sync.Mutex
	saved []entities.Bulletin
}

func (f *fakeBulletinStore) SaveBulletin(b entities.Bulletin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, b)
	return nil
}

type fakeSensorSource struct {
	mu          sync.Mutex
	categories  map[string][]entities.SensorReading
	stations    []entities.Station
	histories   map[string]entities.StationHistory
	coordinates map[string]entities.StationCoordinates
	coordCalls  []string
}

func (f *fakeSensorSource) FetchCategory(ctx context.Context, cat entities.SensorCategory, refDate string) ([]entities.SensorReading, error) {
	readings, ok := f.categories[cat.Code]
	if !ok {
		return nil, &entities.ParseError{Source: cat.Key, Reason: "table not found"}
	}
	out := make([]entities.SensorReading, len(readings))
	copy(out, readings)
	return out, nil
}

func (f *fakeSensorSource) ListStations(ctx context.Context) ([]entities.Station, error) {
	if len(f.stations) == 0 {
		return nil, &entities.ParseError{Source: "stations", Reason: "no station found"}
	}
	return f.stations, nil
}

func (f *fakeSensorSource) FetchHistory(ctx context.Context, station entities.Station) (entities.StationHistory, error) {
	h, ok := f.histories[station.ID]
	if !ok {
		return entities.StationHistory{}, &entities.FetchError{URL: "history?id=" + station.ID, StatusCode: http.StatusInternalServerError}
	}
	return h, nil
}

func (f *fakeSensorSource) FetchCoordinates(ctx context.Context, id string) (entities.StationCoordinates, error) {
	f.mu.Lock()
	f.coordCalls = append(f.coordCalls, id)
	f.mu.Unlock()
	c, ok := f.coordinates[id]
	if !ok {
		return c, fmt.Errorf("station %s: coordinates not found", id)
	}
	return c, nil
}
