package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/geo"
	"github.com/abelzeko/allerta-bot/internal/integration/openai"
	"github.com/abelzeko/allerta-bot/internal/notify"
	"github.com/abelzeko/allerta-bot/internal/repository"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	replyCacheSize  = 256
	zoneHistoryDays = 7
	sensorListLimit = 10
	statusRuns      = 10
)

// NoBulletinMessage is the reply when nothing was scraped yet
const NoBulletinMessage = "Nessun bollettino disponibile al momento."

var zoneSuffix = regexp.MustCompile(`^(?:BASI)?\s*-?\s*([A-E]\s*[12]?)$`)

// AlertQueryUseCase answers the bot questions from the stored history.
// Replies are cached for a short time since the data changes at most a few
// times an hour.
type AlertQueryUseCase struct {
	repo          repository.AlertRepository
	gazetteer     *geo.Gazetteer
	openAIService openai.OpenAIService
	mapURL        string
	location      *time.Location
	cache         *expirable.LRU[string, string]
}

// NewAlertQueryUseCase creates a new query use case. openAIService may be nil.
func NewAlertQueryUseCase(repo repository.AlertRepository, gazetteer *geo.Gazetteer, openAIService openai.OpenAIService,
	mapURL string, loc *time.Location, ttl time.Duration) *AlertQueryUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &AlertQueryUseCase{
		repo:          repo,
		gazetteer:     gazetteer,
		openAIService: openAIService,
		mapURL:        mapURL,
		location:      loc,
		cache:         expirable.NewLRU[string, string](replyCacheSize, nil, ttl),
	}
}

// cached returns the reply stored under key or builds and stores it.
// Errors are not cached.
func (uc *AlertQueryUseCase) cached(key string, build func() (string, error)) (string, error) {
	if v, ok := uc.cache.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return "", err
	}
	uc.cache.Add(key, v)
	return v, nil
}

// Zones returns the alert zones of Basilicata
func (uc *AlertQueryUseCase) Zones() []string {
	return uc.gazetteer.Zones()
}

// ResolveZone turns user input such as "a1", "BASI-A1" or "basi a1" into a
// zone name
func (uc *AlertQueryUseCase) ResolveZone(input string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	m := zoneSuffix.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	name := "BASI " + strings.ReplaceAll(m[1], " ", "")
	for _, z := range uc.Zones() {
		if z == name {
			return z, true
		}
	}
	return "", false
}

// BulletinText returns the latest bulletin in the broadcast format
func (uc *AlertQueryUseCase) BulletinText() (string, error) {
	return uc.cached("bulletin", func() (string, error) {
		b, err := uc.repo.GetLatestBulletin()
		if err != nil {
			return "", fmt.Errorf("failed to get latest bulletin: %w", err)
		}
		if b == nil {
			return NoBulletinMessage, nil
		}
		return notify.BulletinMessage(*b, uc.mapURL), nil
	})
}

// ZoneInfo describes today's and tomorrow's level of a zone and its last days
func (uc *AlertQueryUseCase) ZoneInfo(input string) (string, error) {
	zone, ok := uc.ResolveZone(input)
	if !ok {
		return fmt.Sprintf("Zona '%s' non trovata. Zone disponibili: %s", input, strings.Join(uc.Zones(), ", ")), nil
	}
	return uc.cached("zone:"+zone, func() (string, error) {
		history, err := uc.repo.GetZoneHistory(zone, zoneHistoryDays)
		if err != nil {
			return "", fmt.Errorf("failed to get history for %s: %w", zone, err)
		}
		return uc.FormatZoneInfo(zone, history), nil
	})
}

// FormatZoneInfo formats the level history of one zone for display
func (uc *AlertQueryUseCase) FormatZoneInfo(zone string, history []repository.ZoneDay) string {
	if len(history) == 0 {
		return fmt.Sprintf("Nessun dato disponibile per la zona %s.", zone)
	}

	var result strings.Builder
	latest := history[0]
	result.WriteString(fmt.Sprintf("📍 *Zona %s* (bollettino del %s)\n\n", zone, latest.Date))
	result.WriteString(fmt.Sprintf("Oggi: %s %s\n", latest.Today.Emoji(), latest.Today.Label()))
	if latest.Today != entities.Green && latest.Risk != "" {
		result.WriteString(fmt.Sprintf("   _%s_\n", latest.Risk))
	}
	result.WriteString(fmt.Sprintf("Domani: %s %s\n", latest.Tomorrow.Emoji(), latest.Tomorrow.Label()))

	if len(history) > 1 {
		result.WriteString("\n🗓️ Ultimi giorni:\n")
		for _, d := range history[1:] {
			result.WriteString(fmt.Sprintf("%s %s\n", d.Today.Emoji(), d.Date))
		}
	}
	if n := len(uc.gazetteer.Municipalities(zone)); n > 0 {
		result.WriteString(fmt.Sprintf("\n🏘️ Comuni nella zona: %d", n))
	}
	return strings.TrimRight(result.String(), "\n")
}

// MunicipalityInfo reports the zone of a municipality and its level
func (uc *AlertQueryUseCase) MunicipalityInfo(name string) (string, error) {
	zone, ok := uc.gazetteer.ZoneOf(name)
	if !ok {
		return fmt.Sprintf("Comune '%s' non trovato in Basilicata.", name), nil
	}
	info, err := uc.ZoneInfo(zone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🏘️ *%s* si trova nella zona di allerta *%s*.\n\n%s", strings.TrimSpace(name), zone, info), nil
}

// FindCategory looks a sensor category up by key, code or label, ignoring case
func FindCategory(name string) (entities.SensorCategory, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range entities.SensorCategories {
		if name == c.Key || name == strings.ToLower(c.Code) || name == strings.ToLower(c.Label) {
			return c, true
		}
	}
	return entities.SensorCategory{}, false
}

// SensorsInfo summarizes every category, or lists the highest readings of
// one category when given
func (uc *AlertQueryUseCase) SensorsInfo(category string) (string, error) {
	if strings.TrimSpace(category) == "" {
		return uc.cached("sensors", uc.sensorSummary)
	}
	cat, ok := FindCategory(category)
	if !ok {
		keys := make([]string, 0, len(entities.SensorCategories))
		for _, c := range entities.SensorCategories {
			keys = append(keys, c.Key)
		}
		return fmt.Sprintf("Categoria '%s' sconosciuta. Disponibili: %s", category, strings.Join(keys, ", ")), nil
	}
	return uc.cached("sensors:"+cat.Key, func() (string, error) {
		readings, err := uc.repo.GetLatestReadings(cat.Key)
		if err != nil {
			return "", fmt.Errorf("failed to get %s readings: %w", cat.Key, err)
		}
		return FormatReadings(cat, readings), nil
	})
}

func (uc *AlertQueryUseCase) sensorSummary() (string, error) {
	var result strings.Builder
	result.WriteString("📡 *Sensori in tempo reale*\n\n")
	for _, cat := range entities.SensorCategories {
		readings, err := uc.repo.GetLatestReadings(cat.Key)
		if err != nil {
			return "", fmt.Errorf("failed to get %s readings: %w", cat.Key, err)
		}
		alerts := 0
		for _, r := range readings {
			if r.Status == entities.StatusAlert {
				alerts++
			}
		}
		marker := "✅"
		if alerts > 0 {
			marker = "🚨"
		}
		result.WriteString(fmt.Sprintf("%s %s: %d stazioni, %d oltre soglia (%g %s)\n", marker, cat.Label, len(readings), alerts, cat.Threshold, cat.Unit))
	}
	result.WriteString("\nDettaglio: /sensori <categoria>")
	return result.String(), nil
}

// FormatReadings lists the highest readings of a category
func FormatReadings(cat entities.SensorCategory, readings []entities.SensorReading) string {
	if len(readings) == 0 {
		return fmt.Sprintf("Nessuna lettura disponibile per %s.", strings.ToLower(cat.Label))
	}
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📡 *%s* (soglia %g %s)\n\n", cat.Label, cat.Threshold, cat.Unit))
	for i, r := range readings {
		if i == sensorListLimit {
			result.WriteString(fmt.Sprintf("... e altre %d stazioni", len(readings)-sensorListLimit))
			break
		}
		marker := "▫️"
		if r.Status == entities.StatusAlert {
			marker = "🚨"
		}
		result.WriteString(fmt.Sprintf("%s %s: %g %s (%s)\n", marker, r.Name, r.Value, cat.Unit, r.Time))
	}
	return strings.TrimRight(result.String(), "\n")
}

// ReservoirsInfo lists the reservoir levels of the latest bulletin
func (uc *AlertQueryUseCase) ReservoirsInfo() (string, error) {
	return uc.cached("reservoirs", func() (string, error) {
		records, err := uc.repo.GetLatestReservoirs()
		if err != nil {
			return "", fmt.Errorf("failed to get reservoirs: %w", err)
		}
		if len(records) == 0 {
			return "Nessun dato sugli invasi disponibile.", nil
		}
		var result strings.Builder
		result.WriteString(fmt.Sprintf("💧 *Invasi* (dati del %s)\n\n", records[0].Date))
		for _, r := range records {
			result.WriteString(fmt.Sprintf("%s: %.1f%% (%.2f Mm³ su %.2f)\n", r.DamName, r.FillPercentage, r.CurrentVolume, r.MaxCapacity))
		}
		return strings.TrimRight(result.String(), "\n"), nil
	})
}

// AvalancheInfo describes the latest avalanche bulletin
func (uc *AlertQueryUseCase) AvalancheInfo() (string, error) {
	return uc.cached("avalanche", func() (string, error) {
		b, err := uc.repo.GetLatestAvalanche()
		if err != nil {
			return "", fmt.Errorf("failed to get avalanche bulletin: %w", err)
		}
		if b == nil {
			return "Nessun bollettino valanghe disponibile.", nil
		}
		return FormatAvalanche(*b), nil
	})
}

// FormatAvalanche formats an avalanche bulletin for display
func FormatAvalanche(b entities.AvalancheBulletin) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🏔️ *Valanghe - %s*\n", b.Sector))
	if b.Date != "" {
		result.WriteString(fmt.Sprintf("Bollettino %s del %s\n", b.BulletinNumber, b.Date))
	}
	result.WriteString("\n")
	if b.DangerLevel > 0 {
		result.WriteString(fmt.Sprintf("⚠️ Pericolo: %d - %s\n", b.DangerLevel, b.DangerText))
	} else {
		result.WriteString("⚠️ Pericolo: non disponibile\n")
	}
	if b.Trend != "" {
		result.WriteString(fmt.Sprintf("📈 Tendenza: %s\n", b.Trend))
	}
	if b.Problem != "" {
		result.WriteString(fmt.Sprintf("❄️ Problema: %s\n", b.Problem))
	}
	if len(b.Readings) > 0 {
		r := b.Readings[0]
		result.WriteString(fmt.Sprintf("\n📍 %s (%s)\n", b.ReferenceStation, r.ObservedAt))
		result.WriteString(fmt.Sprintf("Neve al suolo: %g cm, fresca: %g cm\n", r.SnowDepthCM, r.FreshSnowCM))
	}
	return strings.TrimRight(result.String(), "\n")
}

// StatusInfo lists the most recent job runs. It is never cached.
func (uc *AlertQueryUseCase) StatusInfo() (string, error) {
	runs, err := uc.repo.GetRecentRuns(statusRuns)
	if err != nil {
		return "", fmt.Errorf("failed to get recent runs: %w", err)
	}
	last, err := uc.repo.GetLastUpdateTime()
	if err != nil {
		return "", fmt.Errorf("failed to get last update: %w", err)
	}

	var result strings.Builder
	result.WriteString("🛠️ *Stato*\n")
	if last.IsZero() {
		result.WriteString("Nessun aggiornamento riuscito finora.\n")
	} else {
		result.WriteString(fmt.Sprintf("Ultimo aggiornamento: %s\n", last.In(uc.location).Format("02/01/2006 15:04")))
	}
	if len(runs) > 0 {
		result.WriteString("\n")
	}
	for _, run := range runs {
		marker := "✅"
		switch run.Outcome {
		case entities.OutcomeSkipped:
			marker = "⏭️"
		case entities.OutcomeFailed:
			marker = "❌"
		}
		result.WriteString(fmt.Sprintf("%s %s %s\n", marker, run.Job, run.FinishedAt.In(uc.location).Format("02/01 15:04")))
	}
	return strings.TrimRight(result.String(), "\n"), nil
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *AlertQueryUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.openAIService == nil {
		return "", fmt.Errorf("natural language queries are not configured")
	}
	slog.Info("query: interpreting", "query", query)

	categories := make([]string, 0, len(entities.SensorCategories))
	for _, c := range entities.SensorCategories {
		categories = append(categories, c.Key)
	}
	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query, uc.Zones(), categories)
	if err != nil {
		slog.Error("query: agent failed", "error", err)
		return "Al momento non riesco a interpretare la richiesta. Riprova più tardi o usa /help.", nil
	}
	slog.Info("query: agent response", "command", agentResp.CommandName, "argument", agentResp.Argument)

	var data string
	switch agentResp.CommandName {
	case openai.CommandGetBulletin:
		data, err = uc.BulletinText()
	case openai.CommandGetZone:
		if agentResp.Argument == "" {
			return agentResp.UserMessage, nil
		}
		data, err = uc.ZoneInfo(agentResp.Argument)
	case openai.CommandGetComune:
		if agentResp.Argument == "" {
			return agentResp.UserMessage, nil
		}
		data, err = uc.MunicipalityInfo(agentResp.Argument)
	case openai.CommandGetSensors:
		data, err = uc.SensorsInfo(agentResp.Argument)
	case openai.CommandGetReservoirs:
		data, err = uc.ReservoirsInfo()
	case openai.CommandGetAvalanche:
		data, err = uc.AvalancheInfo()
	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil
	default:
		slog.Warn("query: unexpected command", "command", agentResp.CommandName)
		return "Non so come rispondere a questa richiesta. Usa /help per i comandi.", nil
	}
	if err != nil {
		slog.Error("query: failed to load data", "command", agentResp.CommandName, "error", err)
		return "Non riesco a recuperare i dati in questo momento.", nil
	}

	// agent confirmation first, then the data
	msg := agentResp.UserMessage
	if msg != "" {
		msg += "\n\n"
	}
	return msg + data, nil
}
