package pipeline

import (
	"encoding/json"
	"time"

	"sjsage522/dealalert/internal/deal"
)

// EventKey is the stream field name for deal events
const EventKey = "b64_deal"

// DealEvent is published to the event stream for every New or Improved observation
type DealEvent struct {
	RunID       string           `json:"run_id"`
	Transition  string           `json:"transition"`
	Badge       string           `json:"badge,omitempty"`
	Observation deal.Observation `json:"observation"`
	PublishedAt time.Time        `json:"published_at"`
}

func encodeEvent(runID string, o Outcome, at time.Time) ([]byte, error) {
	return json.Marshal(DealEvent{
		RunID:       runID,
		Transition:  o.Transition.String(),
		Badge:       o.Badge.String(),
		Observation: o.Observation,
		PublishedAt: at,
	})
}
