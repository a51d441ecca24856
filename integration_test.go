package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/extractor"
	"sjsage522/dealalert/internal/fanout"
	"sjsage522/dealalert/internal/history"
	"sjsage522/dealalert/internal/notify"
	"sjsage522/dealalert/internal/pipeline"
	"sjsage522/dealalert/internal/registry"
	"sjsage522/dealalert/internal/store"
	"sjsage522/dealalert/logger"
)

// integrationPage mimics the marketplace deals grid: two valid cards and one without a title
const integrationPage = `
<!DOCTYPE html>
<html>
<body>
  <div class="grid">
    <div data-testid="product-card" data-asin="B0CX23V2ZK">
      <a href="/Acme-Laptop/dp/B0CX23V2ZK/ref=deals"><img src="https://m.media-amazon.com/images/I/laptop.jpg"></a>
      <p id="title-B0CX23V2ZK"><span class="a-truncate-full">Acme UltraBook 14 Laptop</span></p>
      <div data-component="dui-badge"><span>45% off</span></div>
      <span class="a-price"><span class="a-offscreen">₹54,990</span></span>
    </div>
    <div data-testid="product-card" data-asin="B0SHOES001">
      <a href="/Runner/dp/B0SHOES001"><img src="https://m.media-amazon.com/images/I/shoes.jpg"></a>
      <p id="title-B0SHOES001"><span class="a-truncate-full">Trail Running Shoes</span></p>
      <div data-component="dui-badge"><span>{{SHOES_DISCOUNT}}% off</span></div>
      <span class="a-price"><span class="a-offscreen">₹{{SHOES_PRICE}}</span></span>
    </div>
    <div data-testid="product-card" data-asin="B0NOTITLE1">
      <div data-component="dui-badge"><span>10% off</span></div>
    </div>
  </div>
</body>
</html>`

func renderPage(shoesDiscount, shoesPrice string) string {
	page := strings.ReplaceAll(integrationPage, "{{SHOES_DISCOUNT}}", shoesDiscount)
	return strings.ReplaceAll(page, "{{SHOES_PRICE}}", shoesPrice)
}

type sentMessage struct {
	UserID int64
	Text   string
}

// captureNotifier records every accepted message
type captureNotifier struct {
	mu      sync.Mutex
	channel []string
	users   []sentMessage
}

func (c *captureNotifier) SendChannel(ctx context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = append(c.channel, msg.Text)
	return nil
}

func (c *captureNotifier) SendUser(ctx context.Context, userID int64, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, sentMessage{UserID: userID, Text: msg.Text})
	return nil
}

func (c *captureNotifier) reset() (channel []string, users []sentMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	channel, users = c.channel, c.users
	c.channel, c.users = nil, nil
	return channel, users
}

func usersOf(msgs []sentMessage) []int64 {
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.UserID)
	}
	return ids
}

func TestEndToEndPipeline(t *testing.T) {
	logger.Default = logger.Nop()
	ctx := context.Background()

	var pageMu sync.Mutex
	page := renderPage("20", "2,499")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageMu.Lock()
		defer pageMu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer server.Close()
	setPage := func(p string) {
		pageMu.Lock()
		page = p
		pageMu.Unlock()
	}

	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "deals.db"))
	require.NoError(t, err)
	defer st.Close()

	// User 1 tracks the laptop with a 30% floor, user 2 tracks the shoes with the default floor,
	// user 3 follows the Footwear category and user 4 tracks the shoes with a 30% floor.
	_, err = st.Track(ctx, 1, "B0CX23V2ZK")
	require.NoError(t, err)
	require.NoError(t, st.SetMinDiscount(ctx, 1, 30))
	_, err = st.Track(ctx, 2, "B0SHOES001")
	require.NoError(t, err)
	_, err = st.AddKeyword(ctx, 3, "footwear")
	require.NoError(t, err)
	_, err = st.Track(ctx, 4, "B0SHOES001")
	require.NoError(t, err)
	require.NoError(t, st.SetMinDiscount(ctx, 4, 30))

	notifier := &captureNotifier{}
	validator := deal.NewValidator()
	ext := extractor.NewHTMLExtractor(extractor.Config{
		Name:    "integration",
		URL:     server.URL,
		BaseURL: "https://www.amazon.in",
	}, nil)
	engine := fanout.NewEngine(
		registry.New(st, validator.Classifier(), 0),
		st,
		notifier,
		notify.NewFormatter("₹", 30),
		fanout.Config{RatePerSecond: 1000, Burst: 100, Concurrency: 4},
	)
	orch := pipeline.New(ext, validator, st, history.NewIndex(st), engine)

	// First run: both deals are new
	result, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 2, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "B0NOTITLE1", result.Rejected[0].ItemID)
	assert.Equal(t, deal.ReasonNoTitle, result.Rejected[0].Reason)
	assert.Equal(t, 2, result.New)
	assert.Empty(t, result.Failures)

	channel, users := notifier.reset()
	assert.Len(t, channel, 2)
	assert.ElementsMatch(t, []int64{1, 2, 3}, usersOf(users))

	state, err := st.GetDealState(ctx, "B0SHOES001")
	require.NoError(t, err)
	assert.Equal(t, 20, state.BestDiscountPercent)
	assert.Equal(t, "Footwear", state.Category)

	// Replaying the same page changes nothing and sends nothing
	result, err = orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Unchanged)
	channel, users = notifier.reset()
	assert.Empty(t, channel)
	assert.Empty(t, users)

	// A better discount re-arms everyone interested in the shoes
	setPage(renderPage("35", "1,999"))
	result, err = orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Improved)
	assert.Equal(t, 1, result.Unchanged)

	channel, users = notifier.reset()
	require.Len(t, channel, 1)
	assert.Contains(t, channel[0], "Trail Running Shoes")
	assert.ElementsMatch(t, []int64{2, 3, 4}, usersOf(users))

	recent, err := history.NewIndex(st).Recent(ctx, "B0SHOES001", 30)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "1999", recent[0].Price.String())
	assert.Equal(t, "2499", recent[1].Price.String())

	// A worse discount is not an improvement
	setPage(renderPage("25", "2,199"))
	result, err = orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Unchanged)
	channel, users = notifier.reset()
	assert.Empty(t, channel)
	assert.Empty(t, users)
}
