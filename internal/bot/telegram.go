package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kumanofoo/tako/internal/client"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
)

// Telegram bridges chat messages to the command interpreter. Each chat
// user maps to an owner keyed by their Telegram user ID; the first message
// opens the account.
type Telegram struct {
	api      *tgbotapi.BotAPI
	db       *sqlite.DB
	forecast client.Forecaster
}

func NewTelegram(token string, db *sqlite.DB, forecast client.Forecaster) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	log.Printf("[telegram] authorized as %s", api.Self.UserName)
	return &Telegram{api: api, db: db, forecast: forecast}, nil
}

// Run consumes updates until ctx is canceled.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			t.handle(ctx, update.Message)
		}
	}
}

func (t *Telegram) handle(ctx context.Context, msg *tgbotapi.Message) {
	ownerID := fmt.Sprintf("tg:%d", msg.From.ID)
	c, err := client.New(ctx, t.db, t.forecast, ownerID, msg.From.UserName)
	if err != nil {
		log.Printf("[telegram] account for %s: %v", ownerID, err)
		return
	}

	cmd := strings.TrimSpace(msg.Text)
	// /start reads as the status command; other slash commands drop
	// their slash so /history works as expected.
	if cmd == "/start" {
		cmd = ""
	} else {
		cmd = strings.TrimPrefix(cmd, "/")
	}

	lines, _ := client.NewInterpreter(c).Interpret(ctx, cmd)
	if len(lines) == 0 {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.Join(lines, "\n"))
	if _, err := t.api.Send(reply); err != nil {
		log.Printf("[telegram] send to %d: %v", msg.Chat.ID, err)
	}
}
