package main

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

type telegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func newTelegramNotifier(token string, chatID int64) (*telegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot online")
	return &telegramNotifier{bot: bot, chatID: chatID}, nil
}

// run dispatches commands from the configured chat to handler and sends back
// any non-empty reply.
func (t *telegramNotifier) run(ctx context.Context, handler func(cmd, args string) string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			if update.Message.Chat == nil || update.Message.Chat.ID != t.chatID {
				continue
			}
			cmd := update.Message.Command()
			if cmd == "" {
				continue
			}
			resp := handler(cmd, update.Message.CommandArguments())
			if resp == "" {
				continue
			}
			if err := t.Send(resp); err != nil {
				log.Error().Err(err).Str("command", cmd).Msg("command reply failed")
			}
		}
	}
}

func (t *telegramNotifier) Send(msg string) error {
	if t == nil {
		return nil
	}
	_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, msg))
	return err
}

func (t *telegramNotifier) SendFile(path string) error {
	if t == nil {
		return nil
	}
	photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FilePath(path))
	_, err := t.bot.Send(photo)
	return err
}
