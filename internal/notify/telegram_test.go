package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []tgbotapi.Chattable
	failOn int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok && f.failOn != 0 && m.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestBroadcastToEveryChat(t *testing.T) {
	sender := &fakeSender{failOn: -1002}
	n := NewTelegramNotifier(sender, []string{"-1001", "-1002", "@allerta_basilicata", "not-an-id"}, "")
	n.Pause = 0

	sent := n.Broadcast(context.Background(), "*Allerta*", &Document{Name: "Bollettino_18-04-2025.pdf", Data: []byte("%PDF")})
	require.Equal(t, 2, sent)
	require.Len(t, sender.sent, 4, "two messages and two documents")

	msg := sender.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, int64(-1001), msg.ChatID)
	require.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	require.True(t, msg.DisableWebPagePreview)
	require.Contains(t, msg.Text, "Condividi su WhatsApp")

	doc := sender.sent[1].(tgbotapi.DocumentConfig)
	require.Equal(t, "Bollettino_18-04-2025.pdf", doc.File.(tgbotapi.FileBytes).Name)

	channel := sender.sent[2].(tgbotapi.MessageConfig)
	require.Equal(t, "@allerta_basilicata", channel.ChannelUsername)
}

func TestBroadcastWithoutChats(t *testing.T) {
	require.Zero(t, NewTelegramNotifier(&fakeSender{}, nil, "").Broadcast(context.Background(), "x", nil))
	var n *TelegramNotifier
	require.False(t, n.Enabled())
	require.NoError(t, n.AlertAdmin("x"))
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, []string{"1", "2", "3"}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, 1, n.Broadcast(ctx, "x", nil))
}

func TestAlertAdmin(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, nil, "42")
	require.NoError(t, n.AlertAdmin("campi mancanti"))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, int64(42), msg.ChatID)
	require.Empty(t, msg.ParseMode)
}

// TestBroadcastThroughBotAPI drives a real BotAPI against a fake Telegram server
func TestBroadcastThroughBotAPI(t *testing.T) {
	var mu sync.Mutex
	calls := map[string][]string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"allerta","username":"allerta_bot"}}`)
			return
		case "sendMessage":
			require.NoError(t, r.ParseForm())
			mu.Lock()
			calls[method] = append(calls[method], r.PostForm.Get("chat_id")+"|"+r.PostForm.Get("parse_mode"))
			mu.Unlock()
		case "sendDocument":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			f, header, err := r.FormFile("document")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			mu.Lock()
			calls[method] = append(calls[method], r.FormValue("chat_id")+"|"+header.Filename+"|"+string(data))
			mu.Unlock()
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1,"type":"channel"}}}`)
	}))
	defer server.Close()

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("TOKEN", server.URL+"/bot%s/%s")
	require.NoError(t, err)

	n := NewTelegramNotifier(bot, []string{"-100", "@canale"}, "")
	n.Pause = 0
	require.Equal(t, 2, n.Broadcast(context.Background(), "*Allerta*", &Document{Name: "b.pdf", Data: []byte("%PDF")}))

	require.Equal(t, []string{"-100|Markdown", "@canale|Markdown"}, calls["sendMessage"])
	require.Equal(t, []string{"-100|b.pdf|%PDF", "@canale|b.pdf|%PDF"}, calls["sendDocument"])
}
