package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseModeHTML marks message text as Telegram-flavoured HTML
const ParseModeHTML = "HTML"

// Message is one outbound chat message
type Message struct {
	Text      string
	ImageURL  string
	ParseMode string
	// Buttons are laid out row by row
	Buttons [][]Button
}

// HasImage reports whether the message should be sent as an image with caption
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// Button is an inline action. Exactly one of Data and URL is set.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Action is the verb carried by a button token
type Action string

const (
	ActionTrack   Action = "track"
	ActionUntrack Action = "untrack"
	ActionHistory Action = "history"
)

// ActionToken encodes an action for itemID as an opaque button payload
func ActionToken(action Action, itemID string) string {
	return string(action) + "_" + itemID
}

// ParseAction decodes a token produced by ActionToken
func ParseAction(token string) (Action, string, error) {
	verb, itemID, ok := strings.Cut(token, "_")
	if !ok || itemID == "" {
		return "", "", fmt.Errorf("malformed action token %q", token)
	}
	switch Action(verb) {
	case ActionTrack, ActionUntrack, ActionHistory:
		return Action(verb), itemID, nil
	default:
		return "", "", fmt.Errorf("unknown action %q", verb)
	}
}

// ShareURL returns a Telegram share link for a deal
func ShareURL(link, text string) string {
	q := url.Values{}
	q.Set("url", link)
	if text != "" {
		q.Set("text", text)
	}
	return "https://t.me/share/url?" + q.Encode()
}
