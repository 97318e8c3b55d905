// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abelzeko/allerta-bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	welcomeText = "Benvenuto nel bot dell'allerta meteo della Basilicata! " +
		"Usa /allerta per il bollettino di oggi o /help per tutti i comandi."
	helpText = "Comandi disponibili:\n" +
		"/allerta - Bollettino di criticità più recente\n" +
		"/zona [zona] - Livello di una zona (es. /zona A1)\n" +
		"/comune [nome] - Zona e livello di un comune\n" +
		"/sensori [categoria] - Sensori in tempo reale\n" +
		"/dighe - Livello degli invasi\n" +
		"/valanghe - Bollettino valanghe\n" +
		"/stato - Ultimi aggiornamenti\n" +
		"/help - Questo messaggio"
	notUnderstoodText = "Non ho capito. Usa /help per vedere i comandi disponibili."
	errorText         = "Errore nel recupero dei dati. Riprova più tardi."
)

// Client is the part of tgbotapi.BotAPI used by the bot
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     Client
	useCase *usecases.AlertQueryUseCase
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(bot Client, useCase *usecases.AlertQueryUseCase) *TelegramBot {
	return &TelegramBot{
		bot:     bot,
		useCase: useCase,
	}
}

// Start listens for messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	slog.Info("telegram: listening for messages")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			slog.Info("telegram: stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			slog.Debug("telegram: message received", "user", userName(update.Message), "chat", update.Message.Chat.ID, "text", update.Message.Text)
			t.handleMessage(ctx, update)
		}
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	switch {
	case update.Message.IsCommand():
		t.handleCommand(update.Message, &msg)
	default:
		t.handleNonCommand(ctx, update.Message, &msg)
	}

	if _, err := t.bot.Send(msg); err != nil {
		// user supplied names can break the markup
		slog.Warn("telegram: markdown reply rejected, sending plain text", "chat", msg.ChatID, "error", err)
		msg.ParseMode = ""
		if _, err := t.bot.Send(msg); err != nil {
			slog.Error("telegram: failed to send reply", "chat", msg.ChatID, "error", err)
		}
	}
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	args := strings.TrimSpace(message.CommandArguments())
	slog.Info("telegram: command", "command", message.Command(), "args", args, "user", userName(message))

	switch message.Command() {
	case "start":
		msg.Text = welcomeText
	case "help":
		msg.Text = helpText
	case "allerta", "bollettino":
		t.reply(msg, t.useCase.BulletinText)
	case "zona":
		if args == "" {
			msg.Text = "Indica una zona. Zone disponibili: " + strings.Join(t.useCase.Zones(), ", ")
			return
		}
		t.reply(msg, func() (string, error) { return t.useCase.ZoneInfo(args) })
	case "comune":
		if args == "" {
			msg.Text = "Indica il nome di un comune. Esempio: /comune Matera"
			return
		}
		t.reply(msg, func() (string, error) { return t.useCase.MunicipalityInfo(args) })
	case "sensori":
		t.reply(msg, func() (string, error) { return t.useCase.SensorsInfo(args) })
	case "dighe", "invasi":
		t.reply(msg, t.useCase.ReservoirsInfo)
	case "valanghe":
		t.reply(msg, t.useCase.AvalancheInfo)
	case "stato":
		t.reply(msg, t.useCase.StatusInfo)
	default:
		msg.Text = "Comando sconosciuto. Usa /help per vedere i comandi disponibili."
	}
}

func (t *TelegramBot) reply(msg *tgbotapi.MessageConfig, build func() (string, error)) {
	text, err := build()
	if err != nil {
		slog.Error("telegram: failed to build reply", "error", err)
		msg.Text = errorText
		return
	}
	msg.Text = text
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		msg.Text = notUnderstoodText
		return
	}

	if answer, err := t.useCase.HandleNaturalLanguageQuery(ctx, text); err == nil {
		msg.Text = answer
		return
	}

	// no agent: default reply with today's bulletin attached
	bulletin, err := t.useCase.BulletinText()
	if err != nil {
		slog.Error("telegram: failed to load bulletin", "error", err)
		msg.Text = notUnderstoodText
		return
	}
	msg.Text = fmt.Sprintf("%s\n\n%s", notUnderstoodText, bulletin)
}

func userName(m *tgbotapi.Message) string {
	if m.From == nil {
		return ""
	}
	return m.From.UserName
}
