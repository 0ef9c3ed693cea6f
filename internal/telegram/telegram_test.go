package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemt-admin/internal/bot"
)

type fakeAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	err       error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: f.err == nil}, f.err
}

func TestClient_SendMessageWithMenu(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api)

	err := c.Send(context.Background(), bot.Reply{ChatID: 5, Text: "<b>hi</b>", HTML: true, Menu: [][]string{{"a", "b"}}})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(5), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	assert.Equal(t, "b", kb.Keyboard[0][1].Text)
}

func TestClient_SendInlineAndEdit(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, bot.Reply{ChatID: 1, Text: "card", Inline: [][]bot.Button{{{Text: "Approve", Data: "approve:3"}}}}))
	msg := api.sent[0].(tgbotapi.MessageConfig)
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "approve:3", *markup.InlineKeyboard[0][0].CallbackData)

	require.NoError(t, c.Send(ctx, bot.Reply{ChatID: 1, Text: "done", Inline: [][]bot.Button{}, EditMessageID: 9}))
	edit, ok := api.sent[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 9, edit.MessageID)
	require.NotNil(t, edit.ReplyMarkup)
	assert.NotNil(t, edit.ReplyMarkup.InlineKeyboard)
	assert.Empty(t, edit.ReplyMarkup.InlineKeyboard)

	require.NoError(t, c.Send(ctx, bot.Reply{ChatID: 1, Inline: [][]bot.Button{}, EditMessageID: 9}))
	_, ok = api.sent[2].(tgbotapi.EditMessageReplyMarkupConfig)
	assert.True(t, ok)
}

func TestClient_SendPhoto(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api)

	require.NoError(t, c.Send(context.Background(), bot.Reply{ChatID: 2, Photo: &bot.Photo{Name: "qr.png", Bytes: []byte{1}, Caption: "link"}}))
	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "link", photo.Caption)
}

func TestClient_Errors(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	c := NewClient(api)

	err := c.Send(context.Background(), bot.Reply{ChatID: 2, Text: "x"})
	assert.ErrorContains(t, err, "chat 2")
	assert.Error(t, c.AnswerCallback(context.Background(), "cb", "", false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Send(ctx, bot.Reply{ChatID: 2, Text: "x"}), context.Canceled)
}

func TestClient_AnswerCallbackAlert(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api)

	require.NoError(t, c.AnswerCallback(context.Background(), "cb1", "nope", true))
	cfg, ok := api.requested[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb1", cfg.CallbackQueryID)
	assert.True(t, cfg.ShowAlert)
}

func TestToAction(t *testing.T) {
	a, ok := ToAction(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42, UserName: "alice", FirstName: "Alice", LastName: " Smith "},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "/start abc",
	}})
	require.True(t, ok)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, int64(42), a.SenderID)
	require.NotNil(t, a.Handle)
	assert.Equal(t, "alice", *a.Handle)
	require.NotNil(t, a.DisplayName)
	assert.Equal(t, "Alice Smith", *a.DisplayName)
	assert.False(t, a.IsCallback())

	a, ok = ToAction(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 7, FirstName: "Bob"},
		Message: &tgbotapi.Message{MessageID: 11, Chat: &tgbotapi.Chat{ID: 70}},
		Data:    "approve:1",
	}})
	require.True(t, ok)
	assert.True(t, a.IsCallback())
	assert.Nil(t, a.Handle)
	assert.Equal(t, int64(70), a.ChatID)
	assert.Equal(t, 11, a.MessageID)

	_, ok = ToAction(tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}}})
	assert.False(t, ok)
	_, ok = ToAction(tgbotapi.Update{})
	assert.False(t, ok)
}

type countingHandler struct {
	mu   sync.Mutex
	seen []int64
}

func (h *countingHandler) Handle(_ context.Context, a bot.Action) {
	if a.Text == "panic" {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, a.SenderID)
}

func TestDispatch(t *testing.T) {
	updates := make(chan tgbotapi.Update, 4)
	for i, text := range []string{"one", "panic", "two"} {
		updates <- tgbotapi.Update{UpdateID: i, Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: int64(i + 1)}, Chat: &tgbotapi.Chat{ID: int64(i + 1)}, Text: text,
		}}
	}
	updates <- tgbotapi.Update{UpdateID: 9}
	close(updates)

	h := &countingHandler{}
	Dispatch(context.Background(), updates, h)
	assert.ElementsMatch(t, []int64{1, 3}, h.seen)
}
