package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/normalize"
)

// ParseAvalanche combines the Meteomont station observations and danger
// grade payloads into one bulletin for sector.
func ParseAvalanche(stationJSON, dangerJSON []byte, sector string, now time.Time) (entities.AvalancheBulletin, error) {
	stations, err := decodeRecords(stationJSON)
	if err != nil {
		return entities.AvalancheBulletin{}, &entities.ParseError{Source: "avalanche/station", Reason: "invalid json", Err: err}
	}
	dangers, err := decodeRecords(dangerJSON)
	if err != nil {
		return entities.AvalancheBulletin{}, &entities.ParseError{Source: "avalanche/danger", Reason: "invalid json", Err: err}
	}
	if len(stations) == 0 && len(dangers) == 0 {
		return entities.AvalancheBulletin{}, &entities.ParseError{Source: "avalanche", Reason: "empty payloads"}
	}

	b := entities.AvalancheBulletin{
		Sector:           sector,
		BulletinNumber:   entities.NotAvailable,
		Date:             entities.NotAvailable,
		DangerText:       entities.NotAvailable,
		Trend:            entities.NotAvailable,
		Problem:          entities.NotAvailable,
		Altitude:         entities.NotAvailable,
		Situation:        entities.NotAvailable,
		ReferenceStation: entities.NotAvailable,
		Readings:         []entities.AvalancheReading{},
		LastUpdate:       now.Format("02/01/2006 15:04"),
	}

	if len(dangers) > 0 {
		d := dangers[0]
		b.DangerLevel, b.DangerText = normalize.DangerLevel(field(d, "gradoPericolo", "grado"))
		b.BulletinNumber = fieldOr(d, b.BulletinNumber, "numeroBollettino", "numero")
		b.Date = fieldOr(d, b.Date, "dataEmissione", "dataBollettino", "data")
		b.Trend = fieldOr(d, b.Trend, "tendenza")
		b.Problem = fieldOr(d, b.Problem, "problemaValanghivo", "problema")
		b.Altitude = fieldOr(d, b.Altitude, "quota")
		b.Situation = fieldOr(d, b.Situation, "situazione", "descrizione", "testo")
	}

	for i, s := range stations {
		if i == 0 {
			b.ReferenceStation = fieldOr(s, b.ReferenceStation, "nomeStazione")
		}
		b.Readings = append(b.Readings, entities.AvalancheReading{
			ObservedAt:    fieldOr(s, entities.NotAvailable, "dataOraOsservazione"),
			SnowDepthCM:   number(s, "altezzaNeveAlSuolo"),
			FreshSnowCM:   number(s, "altezzaNeveFresca24h"),
			AirTemp:       fieldOr(s, entities.NotAvailable, "temperaturaAria"),
			WindSpeed:     fieldOr(s, entities.NotAvailable, "velocitaVento"),
			WindDirection: fieldOr(s, entities.NotAvailable, "direzioneVento"),
		})
	}
	return b, nil
}

func decodeRecords(data []byte) ([]map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var list []map[string]any
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	// some endpoints answer with a single object
	var one map[string]any
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []map[string]any{one}, nil
}

func field(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := normalize.CleanText(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func fieldOr(rec map[string]any, fallback string, keys ...string) string {
	if v := field(rec, keys...); v != "" {
		return v
	}
	return fallback
}

func number(rec map[string]any, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case string:
		f, _ := normalize.ParseReading(v)
		return f
	}
	return 0
}
