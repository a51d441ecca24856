package notify

import (
	"fmt"
	"html"
	"strings"

	"sjsage522/dealalert/helpers"
	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/history"
)

const maxTitleLength = 200

// Formatter renders observations as chat messages
type Formatter struct {
	// CurrencySymbol prefixes prices in badges and price lines
	CurrencySymbol string
	// WindowDays is the history window named by the lowest-price badge
	WindowDays int
}

// NewFormatter creates a formatter using symbol for prices
func NewFormatter(symbol string, windowDays int) *Formatter {
	return &Formatter{CurrencySymbol: symbol, WindowDays: windowDays}
}

// ChannelMessage renders the broadcast for an accepted observation
func (f *Formatter) ChannelMessage(obs deal.Observation, badge history.Badge) Message {
	title := html.EscapeString(helpers.Truncate(obs.Title, maxTitleLength))

	var b strings.Builder
	fmt.Fprintf(&b, "✨ <b>%s</b>\n\n", title)
	fmt.Fprintf(&b, "🔹 %d%% off\n", obs.DiscountPercent)
	if obs.HasPrice() {
		fmt.Fprintf(&b, "💰 %s%s\n", f.CurrencySymbol, obs.Price.Decimal.StringFixedBank(2))
	}
	if label := f.BadgeLabel(badge); label != "" {
		fmt.Fprintf(&b, "📊 %s\n", html.EscapeString(label))
	}
	if obs.Coupon != "" {
		fmt.Fprintf(&b, "💳 %s\n", html.EscapeString(obs.Coupon))
	}
	fmt.Fprintf(&b, "🌂 %s\n", html.EscapeString(obs.Category))
	fmt.Fprintf(&b, "🔗 <a href=\"%s\">Check The Deal</a>", html.EscapeString(obs.Link))

	return Message{
		Text:      b.String(),
		ImageURL:  obs.ImageURL,
		ParseMode: ParseModeHTML,
		Buttons: [][]Button{
			{
				{Label: "🔍 Track Deal", Data: ActionToken(ActionTrack, obs.ID)},
				{Label: "❌ Untrack", Data: ActionToken(ActionUntrack, obs.ID)},
			},
			{
				{Label: "📈 History", Data: ActionToken(ActionHistory, obs.ID)},
				{Label: "📣 Share", URL: ShareURL(obs.Link, obs.Title)},
			},
		},
	}
}

// PersonalMessage renders the direct message for a subscriber.
// reason names why the user is hearing about it ("tracked item" or a keyword).
func (f *Formatter) PersonalMessage(obs deal.Observation, badge history.Badge, reason string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 New discount on %s: <b>%s</b> - %d%% off\n",
		html.EscapeString(reason),
		html.EscapeString(helpers.Truncate(obs.Title, maxTitleLength)),
		obs.DiscountPercent,
	)
	if label := f.BadgeLabel(badge); label != "" {
		fmt.Fprintf(&b, "📊 %s\n", html.EscapeString(label))
	}
	fmt.Fprintf(&b, "<a href=\"%s\">Check Deal</a>", html.EscapeString(obs.Link))

	return Message{
		Text:      b.String(),
		ParseMode: ParseModeHTML,
		Buttons: [][]Button{{
			{Label: "❌ Untrack", Data: ActionToken(ActionUntrack, obs.ID)},
			{Label: "📈 History", Data: ActionToken(ActionHistory, obs.ID)},
		}},
	}
}

// BadgeLabel renders a badge for people, empty when there is none
func (f *Formatter) BadgeLabel(badge history.Badge) string {
	switch badge.Kind {
	case history.LowestInWindow:
		return fmt.Sprintf("Lowest price in %d days", f.WindowDays)
	case history.DroppedFrom:
		return "Price dropped from " + f.CurrencySymbol + badge.Reference.String()
	case history.IncreasedFrom:
		return "Price increased from " + f.CurrencySymbol + badge.Reference.String()
	default:
		return ""
	}
}

// OperatorMessage renders a plain operator alert
func OperatorMessage(text string) Message {
	return Message{Text: "⚠️ " + text}
}
