// Package notify formats alert messages and delivers them to Telegram
// channels and OneSignal subscribers
package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

// BulletinMessage renders the Markdown message broadcast for a new bulletin
func BulletinMessage(b entities.Bulletin, mapURL string) string {
	today := b.Date
	tomorrow := entities.NotAvailable
	if d, err := time.Parse(entities.BulletinDateLayout, b.Date); err == nil {
		tomorrow = d.AddDate(0, 0, 1).Format(entities.BulletinDateLayout)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 *Bollettino Protezione Civile %s*\n", today)
	fmt.Fprintf(&sb, "🕒 Validità: %s\n\n", b.ValidityStart)

	fmt.Fprintf(&sb, "📋 *SITUAZIONE OGGI (%s):*\n", today)
	for _, name := range b.ZoneNames() {
		z := b.Zones[name]
		fmt.Fprintf(&sb, "%s *%s*: %s\n", z.Today.Emoji(), name, strings.ToUpper(string(z.Today)))
		if z.Today != entities.Green {
			fmt.Fprintf(&sb, "   ⚠️ _%s_\n", z.TodayRisk)
		}
	}

	fmt.Fprintf(&sb, "\n🔮 *PREVISIONE DOMANI (%s):*\n", tomorrow)
	critical := false
	for _, name := range b.ZoneNames() {
		z := b.Zones[name]
		if z.Tomorrow == entities.Green {
			continue
		}
		critical = true
		fmt.Fprintf(&sb, "%s *%s*: %s\n   ⚠️ _%s_\n", z.Tomorrow.Emoji(), name, strings.ToUpper(string(z.Tomorrow)), z.TomorrowRisk)
	}
	if !critical {
		sb.WriteString("🟢 Nessuna criticità significativa prevista.\n")
	}

	fmt.Fprintf(&sb, "\n🌐 [Scarica PDF](%s)", b.URL)
	if mapURL != "" {
		fmt.Fprintf(&sb, "\n📍 [Mappa Interattiva](%s)", mapURL)
	}
	return sb.String()
}

// PushSummary is the short plain text used for push notifications
func PushSummary(b entities.Bulletin) (title, body string) {
	title = "Bollettino Protezione Civile " + b.Date
	maxToday := b.MaxToday()
	if maxToday == entities.Green {
		return title, "Nessuna criticità prevista oggi in Basilicata."
	}
	var zones []string
	for _, name := range b.ZoneNames() {
		if b.Zones[name].Today == maxToday {
			zones = append(zones, name)
		}
	}
	return title, fmt.Sprintf("Allerta %s oggi: %s", maxToday.Label(), strings.Join(zones, ", "))
}

// WhatsAppLink returns a wa.me share link for text with Markdown markers removed
func WhatsAppLink(text string) string {
	clean := strings.NewReplacer("*", "", "_", "", "`", "").Replace(text)
	encoded := strings.ReplaceAll(url.QueryEscape(clean), "+", "%20")
	return "https://wa.me/?text=" + encoded
}

// WithShareLink appends the WhatsApp share link to a Markdown message
func WithShareLink(text string) string {
	return text + "\n\n📲 [Condividi su WhatsApp](" + WhatsAppLink(text) + ")"
}

// PDFFilename is the attachment name used for the bulletin of date DD/MM/YYYY
func PDFFilename(date string) string {
	return "Bollettino_" + strings.ReplaceAll(date, "/", "-") + ".pdf"
}

// MissingFieldsAlert is the admin message sent when a bulletin lacks required fields
func MissingFieldsAlert(source string, missing []string) string {
	return fmt.Sprintf("⚠️ Estrazione incompleta da %s\nCampi mancanti: %s", source, strings.Join(missing, ", "))
}

// MissingFields lists the required bulletin fields that could not be read
func MissingFields(b entities.Bulletin) []string {
	var missing []string
	if b.ValidityStart == "" || b.ValidityStart == entities.NotAvailable {
		missing = append(missing, "validita_inizio")
	}
	if b.ValidityEnd == "" || b.ValidityEnd == entities.NotAvailable {
		missing = append(missing, "validita_fine")
	}
	if len(b.Zones) == 0 {
		missing = append(missing, "zone")
	}
	return missing
}
