package notify

import (
	"context"

	"sjsage522/dealalert/logger"
)

// OperatorAlerter sends operational alerts to a capped list of operators
type OperatorAlerter struct {
	notifier  Notifier
	operators []int64
	log       *logger.Logger
}

// NewOperatorAlerter creates an alerter delivering to at most maxAlerts of operators
func NewOperatorAlerter(notifier Notifier, operators []int64, maxAlerts int) *OperatorAlerter {
	if maxAlerts < 0 {
		maxAlerts = 0
	}
	if len(operators) > maxAlerts {
		operators = operators[:maxAlerts]
	}
	return &OperatorAlerter{
		notifier:  notifier,
		operators: append([]int64(nil), operators...),
		log:       logger.ForNotifier(),
	}
}

// Alert sends text to every configured operator and returns how many deliveries succeeded
func (a *OperatorAlerter) Alert(ctx context.Context, text string) int {
	if a == nil || a.notifier == nil {
		return 0
	}
	msg := OperatorMessage(text)
	sent := 0
	for _, id := range a.operators {
		if err := a.notifier.SendUser(ctx, id, msg); err != nil {
			a.log.Warn().Err(err).Int64("user_id", id).Msg("Failed to alert operator")
			continue
		}
		sent++
	}
	return sent
}
