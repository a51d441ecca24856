package notify

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sjsage522/dealalert/logger"
)

// maxCaptionLength is Telegram's limit for photo captions
const maxCaptionLength = 1024

// Sender is the subset of *tgbotapi.BotAPI used for delivery
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends messages through the Telegram Bot API
type TelegramNotifier struct {
	sender    Sender
	channelID string
	log       *logger.Logger

	// lateSend receives the outcome of a request that finished after its
	// caller gave up on it
	lateSend func(chat int64, err error)
}

// NewTelegramNotifier creates a notifier posting broadcasts to channelID,
// which is either a numeric chat id or an @channel username.
func NewTelegramNotifier(sender Sender, channelID string) *TelegramNotifier {
	n := &TelegramNotifier{
		sender:    sender,
		channelID: channelID,
		log:       logger.ForNotifier(),
	}
	n.lateSend = n.logLateSend
	return n
}

// NewBotAPI connects to Telegram with token
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return bot, nil
}

// SendChannel posts msg to the broadcast channel
func (n *TelegramNotifier) SendChannel(ctx context.Context, msg Message) error {
	if n.channelID == "" {
		return fmt.Errorf("no broadcast channel configured")
	}
	if id, err := strconv.ParseInt(n.channelID, 10, 64); err == nil {
		return n.send(ctx, n.build(chatTarget{id: id}, msg))
	}
	return n.send(ctx, n.build(chatTarget{username: n.channelID}, msg))
}

// SendUser sends msg as a direct message
func (n *TelegramNotifier) SendUser(ctx context.Context, userID int64, msg Message) error {
	return n.send(ctx, n.build(chatTarget{id: userID}, msg))
}

type chatTarget struct {
	id       int64
	username string
}

// build returns a photo with caption when the message has an image that fits, otherwise text
func (n *TelegramNotifier) build(to chatTarget, msg Message) tgbotapi.Chattable {
	markup := keyboard(msg.Buttons)

	if msg.HasImage() && utf8.RuneCountInString(msg.Text) <= maxCaptionLength {
		var photo tgbotapi.PhotoConfig
		if to.username != "" {
			photo = tgbotapi.NewPhotoToChannel(to.username, tgbotapi.FileURL(msg.ImageURL))
		} else {
			photo = tgbotapi.NewPhoto(to.id, tgbotapi.FileURL(msg.ImageURL))
		}
		photo.Caption = msg.Text
		photo.ParseMode = msg.ParseMode
		if markup != nil {
			photo.ReplyMarkup = *markup
		}
		return photo
	}

	var text tgbotapi.MessageConfig
	if to.username != "" {
		text = tgbotapi.NewMessageToChannel(to.username, msg.Text)
	} else {
		text = tgbotapi.NewMessage(to.id, msg.Text)
	}
	text.ParseMode = msg.ParseMode
	text.DisableWebPagePreview = !msg.HasImage()
	if markup != nil {
		text.ReplyMarkup = *markup
	}
	return text
}

// send runs the blocking API call so a canceled context returns promptly
func (n *TelegramNotifier) send(ctx context.Context, c tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := n.sender.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The request is still in flight and may reach the chat. The caller
		// records this send as failed, so a late success leaves no record.
		go func() {
			n.lateSend(chatID(c), <-done)
		}()
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}

func (n *TelegramNotifier) logLateSend(chat int64, err error) {
	if err != nil {
		n.log.Debug().Err(err).Int64("chat_id", chat).Msg("Timed out send failed")
		return
	}
	n.log.Warn().
		Int64("chat_id", chat).
		Msg("Send delivered after timeout; the recipient got a message with no notification record")
}

// chatID returns the numeric chat a message targets, 0 for @channel usernames
func chatID(c tgbotapi.Chattable) int64 {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID
	case tgbotapi.PhotoConfig:
		return m.ChatID
	default:
		return 0
	}
}

func keyboard(rows [][]Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var kbRows [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var kbRow []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			} else {
				kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
		}
		if len(kbRow) > 0 {
			kbRows = append(kbRows, tgbotapi.NewInlineKeyboardRow(kbRow...))
		}
	}
	if len(kbRows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &markup
}
