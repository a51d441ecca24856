package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"sjsage522/dealalert/internal/history"
)

var noBadge = history.Badge{}

// recordingNotifier is a Notifier that records deliveries and fails for selected users
type recordingNotifier struct {
	mu      sync.Mutex
	users   []int64
	failFor map[int64]bool
}

func (r *recordingNotifier) SendChannel(context.Context, Message) error { return nil }

func (r *recordingNotifier) SendUser(_ context.Context, userID int64, _ Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[userID] {
		return errors.New("blocked")
	}
	r.users = append(r.users, userID)
	return nil
}

func TestOperatorAlerterCaps(t *testing.T) {
	rec := &recordingNotifier{}
	a := NewOperatorAlerter(rec, []int64{1, 2, 3, 4}, 2)

	sent := a.Alert(context.Background(), "selectors may be outdated")
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, rec.users)
}

func TestOperatorAlerterSkipsFailures(t *testing.T) {
	rec := &recordingNotifier{failFor: map[int64]bool{1: true}}
	a := NewOperatorAlerter(rec, []int64{1, 2}, 5)

	assert.Equal(t, 1, a.Alert(context.Background(), "fetch failed"))
	assert.Equal(t, []int64{2}, rec.users)
}

func TestOperatorAlerterDisabled(t *testing.T) {
	var a *OperatorAlerter
	assert.Equal(t, 0, a.Alert(context.Background(), "x"))

	rec := &recordingNotifier{}
	assert.Equal(t, 0, NewOperatorAlerter(rec, []int64{1}, 0).Alert(context.Background(), "x"))
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier()
	assert.NoError(t, n.SendChannel(context.Background(), Message{Text: "x"}))
	assert.NoError(t, n.SendUser(context.Background(), 1, Message{Text: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, n.SendUser(ctx, 1, Message{Text: "x"}))
}
