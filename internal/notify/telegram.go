package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of tgbotapi.BotAPI used to deliver messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Document is a file attached after the message text
type Document struct {
	Name string
	Data []byte
}

// TelegramNotifier broadcasts messages to a list of chats and channels
type TelegramNotifier struct {
	bot         Sender
	chatIDs     []string
	adminChatID string
	// Pause is the delay between two chats
	Pause time.Duration
}

// NewTelegramNotifier creates a notifier. Chat ids are numeric ids or
// @channel usernames.
func NewTelegramNotifier(bot Sender, chatIDs []string, adminChatID string) *TelegramNotifier {
	return &TelegramNotifier{
		bot:         bot,
		chatIDs:     chatIDs,
		adminChatID: adminChatID,
		Pause:       time.Second,
	}
}

// Enabled reports whether there is anyone to notify
func (n *TelegramNotifier) Enabled() bool {
	return n != nil && n.bot != nil && len(n.chatIDs) > 0
}

// Broadcast sends text (Markdown, share link appended) and the optional
// document to every chat. Failures are logged per chat and never retried.
// It returns the number of chats that received the text.
func (n *TelegramNotifier) Broadcast(ctx context.Context, text string, doc *Document) int {
	if !n.Enabled() {
		slog.Debug("telegram: no chats configured, skipping broadcast")
		return 0
	}
	full := WithShareLink(text)

	sent := 0
	for i, chatID := range n.chatIDs {
		if i > 0 && n.Pause > 0 {
			select {
			case <-ctx.Done():
				slog.Warn("telegram: broadcast interrupted", "sent", sent, "error", ctx.Err())
				return sent
			case <-time.After(n.Pause):
			}
		}

		chat, err := baseChat(chatID)
		if err != nil {
			slog.Error("telegram: invalid chat id", "chat", chatID, "error", err)
			continue
		}
		if _, err := n.bot.Send(markdownMessage(chat, full)); err != nil {
			slog.Error("telegram: failed to send message", "chat", chatID, "error", err)
			continue
		}
		sent++

		if doc != nil && len(doc.Data) > 0 {
			file := tgbotapi.DocumentConfig{BaseFile: tgbotapi.BaseFile{
				BaseChat: chat,
				File:     tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data},
			}}
			if _, err := n.bot.Send(file); err != nil {
				slog.Error("telegram: failed to send document", "chat", chatID, "file", doc.Name, "error", err)
			}
		}
	}
	slog.Info("telegram: broadcast done", "sent", sent, "chats", len(n.chatIDs))
	return sent
}

// AlertAdmin sends a plain text message to the admin chat, if configured
func (n *TelegramNotifier) AlertAdmin(text string) error {
	if n == nil || n.bot == nil || n.adminChatID == "" {
		return nil
	}
	chat, err := baseChat(n.adminChatID)
	if err != nil {
		return err
	}
	if _, err := n.bot.Send(tgbotapi.MessageConfig{BaseChat: chat, Text: text}); err != nil {
		return fmt.Errorf("failed to alert admin: %w", err)
	}
	return nil
}

func markdownMessage(chat tgbotapi.BaseChat, text string) tgbotapi.MessageConfig {
	return tgbotapi.MessageConfig{
		BaseChat:              chat,
		Text:                  text,
		ParseMode:             tgbotapi.ModeMarkdown,
		DisableWebPagePreview: true,
	}
}

// baseChat addresses a numeric chat id or an @channel username
func baseChat(id string) (tgbotapi.BaseChat, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "@") {
		return tgbotapi.BaseChat{ChannelUsername: id}, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return tgbotapi.BaseChat{}, fmt.Errorf("chat id %q: %w", id, err)
	}
	return tgbotapi.BaseChat{ChatID: n}, nil
}
