package fanout

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/history"
	"sjsage522/dealalert/internal/notify"
	"sjsage522/dealalert/internal/registry"
	"sjsage522/dealalert/logger"
	perrors "sjsage522/dealalert/pkg/errors"
)

// Registry resolves the subscribers of a deal
type Registry interface {
	TrackersOf(ctx context.Context, itemID string) ([]int64, error)
	MinDiscountOf(ctx context.Context, userID int64) (int, error)
	KeywordSubscribersMatching(ctx context.Context, title string) ([]registry.KeywordMatch, error)
}

// Recorder persists notification records
type Recorder interface {
	HasNotified(ctx context.Context, userID int64, itemID string) (bool, error)
	MarkNotified(ctx context.Context, userID int64, itemID string, at time.Time) error
}

// Config controls delivery pacing
type Config struct {
	// RatePerSecond and Burst pace every send, channel and personal
	RatePerSecond float64
	Burst         int
	// Concurrency bounds in-flight personal sends
	Concurrency int
	// OperationTimeout bounds each store or notifier call
	OperationTimeout time.Duration
}

// DefaultConfig returns conservative pacing for chat delivery
func DefaultConfig() Config {
	return Config{
		RatePerSecond:    1,
		Burst:            5,
		Concurrency:      4,
		OperationTimeout: 10 * time.Second,
	}
}

// Engine turns one accepted observation into channel and personal deliveries
type Engine struct {
	registry  Registry
	recorder  Recorder
	notifier  notify.Notifier
	formatter *notify.Formatter
	limiter   *rate.Limiter
	cfg       Config
	now       func() time.Time
	log       *logger.Logger
}

// NewEngine creates a fan-out engine
func NewEngine(reg Registry, rec Recorder, notifier notify.Notifier, formatter *notify.Formatter, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaults.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}

	return &Engine{
		registry:  reg,
		recorder:  rec,
		notifier:  notifier,
		formatter: formatter,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:       cfg,
		now:       time.Now,
		log:       logger.ForFanout(),
	}
}

// Result describes what one dispatch delivered
type Result struct {
	ItemID          string
	ChannelSent     bool
	Notified        []int64
	AlreadyNotified []int64
	BelowMinimum    []int64
	Failures        []*perrors.PipelineError
}

// recipient is a deduplicated user with every reason they qualify
type recipient struct {
	userID   int64
	tracking bool
	keywords []string
}

func (r *recipient) keywordMatch() bool {
	return len(r.keywords) > 0
}

func (r *recipient) reason() string {
	if r.tracking {
		return "tracked item"
	}
	return fmt.Sprintf("keyword %q", r.keywords[0])
}

// Dispatch broadcasts obs to the channel, then notifies each eligible subscriber at most once.
// Failures are collected in the result and never stop other deliveries.
func (e *Engine) Dispatch(ctx context.Context, obs deal.Observation, badge history.Badge) Result {
	res := Result{ItemID: obs.ID}
	var mu sync.Mutex
	fail := func(err *perrors.PipelineError) {
		mu.Lock()
		res.Failures = append(res.Failures, err)
		mu.Unlock()
		e.log.Warn().
			Err(err).
			Str("item_id", err.ItemID).
			Int64("user_id", err.UserID).
			Str("type", string(err.Type)).
			Msg("Fan-out failure")
	}

	// A failed broadcast does not stop personal notifications
	if err := e.sendChannel(ctx, obs, badge); err != nil {
		fail(err)
	} else {
		res.ChannelSent = true
	}

	// Collect recipients, one per user
	recipients := e.recipients(ctx, obs, fail)

	// Deliver in parallel, bounded by the configured concurrency
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, r := range recipients {
		g.Go(func() error {
			outcome, err := e.deliver(ctx, obs, badge, r)
			mu.Lock()
			switch outcome {
			case outcomeNotified:
				res.Notified = append(res.Notified, r.userID)
			case outcomeAlreadyNotified:
				res.AlreadyNotified = append(res.AlreadyNotified, r.userID)
			case outcomeBelowMinimum:
				res.BelowMinimum = append(res.BelowMinimum, r.userID)
			}
			mu.Unlock()
			if err != nil {
				fail(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Sort for stable results
	sortIDs(res.Notified)
	sortIDs(res.AlreadyNotified)
	sortIDs(res.BelowMinimum)

	e.log.Info().
		Str("item_id", obs.ID).
		Bool("channel", res.ChannelSent).
		Int("recipients", len(recipients)).
		Int("notified", len(res.Notified)).
		Int("failures", len(res.Failures)).
		Msg("Fan-out complete")

	return res
}

func (e *Engine) sendChannel(ctx context.Context, obs deal.Observation, badge history.Badge) *perrors.PipelineError {
	if err := e.limiter.Wait(ctx); err != nil {
		return perrors.NewDelivery(obs.ID, 0, "channel send not paced", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	if err := e.notifier.SendChannel(opCtx, e.formatter.ChannelMessage(obs, badge)); err != nil {
		return perrors.NewDelivery(obs.ID, 0, "channel broadcast failed", err)
	}
	return nil
}

// recipients merges trackers and keyword matches, one entry per user
func (e *Engine) recipients(ctx context.Context, obs deal.Observation, fail func(*perrors.PipelineError)) []*recipient {
	byUser := make(map[int64]*recipient)
	get := func(id int64) *recipient {
		r, ok := byUser[id]
		if !ok {
			r = &recipient{userID: id}
			byUser[id] = r
		}
		return r
	}

	// Explicit trackers
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	trackers, err := e.registry.TrackersOf(opCtx, obs.ID)
	cancel()
	if err != nil {
		fail(perrors.NewStore(obs.ID, "load trackers", err))
	}
	for _, id := range trackers {
		get(id).tracking = true
	}

	// Keyword and category subscribers
	opCtx, cancel = context.WithTimeout(ctx, e.cfg.OperationTimeout)
	matches, err := e.registry.KeywordSubscribersMatching(opCtx, obs.Title)
	cancel()
	if err != nil {
		fail(perrors.NewStore(obs.ID, "load keyword subscribers", err))
	}
	for _, m := range matches {
		r := get(m.UserID)
		if !contains(r.keywords, m.Keyword) {
			r.keywords = append(r.keywords, m.Keyword)
		}
	}

	out := make([]*recipient, 0, len(byUser))
	for _, r := range byUser {
		sort.Strings(r.keywords)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].userID < out[j].userID })
	return out
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeNotified
	outcomeAlreadyNotified
	outcomeBelowMinimum
)

// deliver sends one personal message. The record is written only after a
// successful send; a failed send leaves the user unrecorded and is not retried.
func (e *Engine) deliver(ctx context.Context, obs deal.Observation, badge history.Badge, r *recipient) (outcome, *perrors.PipelineError) {
	// Skip users already told about this discount
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	notified, err := e.recorder.HasNotified(opCtx, r.userID, obs.ID)
	cancel()
	if err != nil {
		return outcomeNone, userError(perrors.NewStore(obs.ID, "check notification record", err), r.userID)
	}
	if notified {
		return outcomeAlreadyNotified, nil
	}

	// Keyword matches bypass the minimum discount
	if !r.keywordMatch() {
		opCtx, cancel = context.WithTimeout(ctx, e.cfg.OperationTimeout)
		minimum, err := e.registry.MinDiscountOf(opCtx, r.userID)
		cancel()
		if err != nil {
			return outcomeNone, userError(perrors.NewStore(obs.ID, "load minimum discount", err), r.userID)
		}
		if obs.DiscountPercent < minimum {
			return outcomeBelowMinimum, nil
		}
	}

	// Wait for a send slot
	if err := e.limiter.Wait(ctx); err != nil {
		return outcomeNone, perrors.NewDelivery(obs.ID, r.userID, "personal send not paced", err)
	}

	// Send the personal message
	opCtx, cancel = context.WithTimeout(ctx, e.cfg.OperationTimeout)
	err = e.notifier.SendUser(opCtx, r.userID, e.formatter.PersonalMessage(obs, badge, r.reason()))
	cancel()
	if err != nil {
		return outcomeNone, perrors.NewDelivery(obs.ID, r.userID, "personal send failed", err)
	}

	// Record the delivery
	opCtx, cancel = context.WithTimeout(ctx, e.cfg.OperationTimeout)
	err = e.recorder.MarkNotified(opCtx, r.userID, obs.ID, e.now())
	cancel()
	if err != nil {
		// The user got the message; report the missing record rather than hide it
		return outcomeNotified, userError(perrors.NewStore(obs.ID, "record notification after send", err), r.userID)
	}
	return outcomeNotified, nil
}

func userError(err *perrors.PipelineError, userID int64) *perrors.PipelineError {
	err.UserID = userID
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
