// Package telegram connects the bot handler to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"telemt-admin/internal/bot"
	"telemt-admin/internal/logger"
)

const pollTimeout = 60

// ActionHandler consumes normalized chat actions.
type ActionHandler interface {
	Handle(ctx context.Context, a bot.Action)
}

type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client renders bot replies through the Bot API. It implements bot.Responder.
type Client struct {
	api api
}

func NewClient(a api) *Client {
	return &Client{api: a}
}

// Connect authenticates with the Bot API and returns the client and the
// bot's username.
func Connect(token string) (*Client, *tgbotapi.BotAPI, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Authorized on Telegram", "bot_username", botAPI.Self.UserName)
	return NewClient(botAPI), botAPI, nil
}

func (c *Client) Send(ctx context.Context, r bot.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chattable := render(r)
	if _, err := c.api.Send(chattable); err != nil {
		return fmt.Errorf("failed to send to chat %d: %w", r.ChatID, err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := c.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func render(r bot.Reply) tgbotapi.Chattable {
	parseMode := ""
	if r.HTML {
		parseMode = tgbotapi.ModeHTML
	}

	switch {
	case r.Photo != nil:
		photo := tgbotapi.NewPhoto(r.ChatID, tgbotapi.FileBytes{Name: r.Photo.Name, Bytes: r.Photo.Bytes})
		photo.Caption = r.Photo.Caption
		photo.ParseMode = parseMode
		return photo
	case r.EditMessageID != 0 && r.Text == "":
		return tgbotapi.NewEditMessageReplyMarkup(r.ChatID, r.EditMessageID, inlineMarkup(r.Inline))
	case r.EditMessageID != 0:
		edit := tgbotapi.NewEditMessageTextAndMarkup(r.ChatID, r.EditMessageID, r.Text, inlineMarkup(r.Inline))
		edit.ParseMode = parseMode
		return edit
	}

	msg := tgbotapi.NewMessage(r.ChatID, r.Text)
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true
	switch {
	case r.Inline != nil:
		msg.ReplyMarkup = inlineMarkup(r.Inline)
	case r.Menu != nil:
		msg.ReplyMarkup = replyKeyboard(r.Menu)
	}
	return msg
}

func inlineMarkup(rows [][]bot.Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	keyboard := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.ResizeKeyboard = true
	return markup
}

// ToAction normalizes an update. It reports false for updates the bot does
// not react to.
func ToAction(u tgbotapi.Update) (bot.Action, bool) {
	a := bot.Action{ID: uuid.NewString()}
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From == nil {
			return a, false
		}
		fillSender(&a, q.From)
		a.ChatID = q.From.ID
		a.CallbackID = q.ID
		a.CallbackData = q.Data
		if q.Message != nil && q.Message.Chat != nil {
			a.ChatID = q.Message.Chat.ID
			a.MessageID = q.Message.MessageID
		}
		return a, true
	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil || m.Text == "" {
			return a, false
		}
		fillSender(&a, m.From)
		a.ChatID = m.Chat.ID
		a.Text = m.Text
		return a, true
	}
	return a, false
}

func fillSender(a *bot.Action, u *tgbotapi.User) {
	a.SenderID = u.ID
	if u.UserName != "" {
		handle := u.UserName
		a.Handle = &handle
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		a.DisplayName = &name
	}
}

// Poller feeds long-poll updates into a handler, one goroutine per update.
type Poller struct {
	botAPI  *tgbotapi.BotAPI
	handler ActionHandler
}

func NewPoller(botAPI *tgbotapi.BotAPI, handler ActionHandler) *Poller {
	return &Poller{botAPI: botAPI, handler: handler}
}

// Run blocks until ctx is cancelled and in-flight updates have finished.
func (p *Poller) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := p.botAPI.GetUpdatesChan(cfg)
	Dispatch(ctx, updates, p.handler)
	p.botAPI.StopReceivingUpdates()
}

// Dispatch handles updates until ctx is done or the channel closes, then
// waits for running handlers.
func Dispatch(ctx context.Context, updates <-chan tgbotapi.Update, handler ActionHandler) {
	log := logger.WithComponent("telegram")
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping update dispatch")
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			a, ok := ToAction(u)
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Error("Update handler panicked", "correlation_id", a.ID, "update_id", u.UpdateID, "panic", r)
					}
				}()
				handler.Handle(ctx, a)
			}()
		}
	}
}
