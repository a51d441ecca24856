package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSender records what would have been sent to Telegram
type mockSender struct {
	mu    sync.Mutex
	sent  []tgbotapi.Chattable
	err   error
	delay time.Duration
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, m.err
}

func (m *mockSender) last(t *testing.T) tgbotapi.Chattable {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func TestTelegramChannelPhoto(t *testing.T) {
	sender := &mockSender{}
	n := NewTelegramNotifier(sender, "@deals_channel")

	msg := NewFormatter("₹", 30).ChannelMessage(sampleObservation(), noBadge)
	require.NoError(t, n.SendChannel(context.Background(), msg))

	photo, ok := sender.last(t).(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "@deals_channel", photo.ChannelUsername)
	assert.Equal(t, tgbotapi.FileURL("https://m.media-amazon.com/images/I/shoes.jpg"), photo.File)
	assert.Equal(t, msg.Text, photo.Caption)
	assert.Equal(t, "HTML", photo.ParseMode)

	markup, ok := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "track_B0SHOES001", *markup.InlineKeyboard[0][0].CallbackData)
	require.NotNil(t, markup.InlineKeyboard[1][1].URL)
}

func TestTelegramNumericChannelText(t *testing.T) {
	sender := &mockSender{}
	n := NewTelegramNotifier(sender, "-100123")

	require.NoError(t, n.SendChannel(context.Background(), Message{Text: "hello"}))

	text, ok := sender.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), text.ChatID)
	assert.Equal(t, "hello", text.Text)
	assert.Nil(t, text.ReplyMarkup)
}

func TestTelegramLongCaptionFallsBackToText(t *testing.T) {
	sender := &mockSender{}
	n := NewTelegramNotifier(sender, "@c")

	long := make([]rune, maxCaptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, n.SendUser(context.Background(), 42, Message{Text: string(long), ImageURL: "https://img"}))

	text, ok := sender.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), text.ChatID)
}

func TestTelegramErrors(t *testing.T) {
	n := NewTelegramNotifier(&mockSender{err: errors.New("Forbidden: bot was blocked by the user")}, "@c")
	assert.Error(t, n.SendUser(context.Background(), 42, Message{Text: "x"}))

	assert.Error(t, NewTelegramNotifier(&mockSender{}, "").SendChannel(context.Background(), Message{Text: "x"}))

	slow := NewTelegramNotifier(&mockSender{delay: time.Second}, "@c")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := slow.SendUser(ctx, 42, Message{Text: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTelegramLateSendIsReported(t *testing.T) {
	n := NewTelegramNotifier(&mockSender{delay: 100 * time.Millisecond}, "@c")
	late := make(chan error, 1)
	var lateChat int64
	n.lateSend = func(chat int64, err error) {
		lateChat = chat
		late <- err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := n.SendUser(ctx, 42, Message{Text: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case err := <-late:
		assert.NoError(t, err)
		assert.Equal(t, int64(42), lateChat)
	case <-time.After(2 * time.Second):
		t.Fatal("late send outcome was not reported")
	}
}
