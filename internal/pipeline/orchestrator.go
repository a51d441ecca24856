package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/extractor"
	"sjsage522/dealalert/internal/fanout"
	"sjsage522/dealalert/internal/history"
	"sjsage522/dealalert/internal/store"
	"sjsage522/dealalert/logger"
	perrors "sjsage522/dealalert/pkg/errors"
	"sjsage522/dealalert/services/lock"
	"sjsage522/dealalert/services/publisher"
)

// DealStore reconciles observations with stored deal state
type DealStore interface {
	RecordObservation(ctx context.Context, obs deal.Observation) (deal.Transition, error)
}

// PriceHistory reads and appends price points
type PriceHistory interface {
	Recent(ctx context.Context, itemID string, windowDays int) ([]store.PricePoint, error)
	Append(ctx context.Context, itemID string, price decimal.NullDecimal, observedAt time.Time) (bool, error)
}

// Dispatcher fans an observation out to the channel and subscribers
type Dispatcher interface {
	Dispatch(ctx context.Context, obs deal.Observation, badge history.Badge) fanout.Result
}

// Alerter notifies operators about runs that need attention
type Alerter interface {
	Alert(ctx context.Context, text string) int
}

// Orchestrator runs Extractor -> Validator -> Store -> History -> Fan-out
type Orchestrator struct {
	extractor  extractor.Extractor
	validator  *deal.Validator
	store      DealStore
	history    PriceHistory
	dispatcher Dispatcher

	runLock   lock.Locker
	alerter   Alerter
	publisher publisher.Publisher

	workers          int
	windowDays       int
	operationTimeout time.Duration

	mu       sync.Mutex
	state    State
	observer func(State)

	now func() time.Time
	log *logger.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRunLock replaces the default in-process run lock
func WithRunLock(l lock.Locker) Option {
	return func(o *Orchestrator) { o.runLock = l }
}

// WithAlerter sets the operator alerter
func WithAlerter(a Alerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

// WithPublisher publishes New and Improved observations as events
func WithPublisher(p publisher.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithWorkers bounds parallel validation and reconciliation
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithHistoryWindow sets the price history window in days
func WithHistoryWindow(days int) Option {
	return func(o *Orchestrator) {
		if days > 0 {
			o.windowDays = days
		}
	}
}

// WithOperationTimeout bounds each store call
func WithOperationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.operationTimeout = d
		}
	}
}

// WithStateObserver is called on every state change
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// New creates an orchestrator
func New(ext extractor.Extractor, validator *deal.Validator, st DealStore, hist PriceHistory, disp Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:        ext,
		validator:        validator,
		store:            st,
		history:          hist,
		dispatcher:       disp,
		runLock:          lock.NewLocalLock(),
		workers:          4,
		windowDays:       30,
		operationTimeout: 10 * time.Second,
		state:            StateIdle,
		now:              time.Now,
		log:              logger.ForPipeline(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current run state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	observer := o.observer
	o.mu.Unlock()
	if observer != nil {
		observer(s)
	}
}

// Run executes one pipeline run.
//
// A run that cannot take the run lock or fetch candidates returns an empty
// result and an error without touching the store. Failures for individual
// candidates are collected in the result and never abort the batch.
//
// Canceling ctx stops observations that are not yet recorded. Observations
// already recorded as New or Improved are still fanned out, bounded by the
// per-operation timeout, because a later run would see them as Unchanged.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString(), StartedAt: o.now()}
	log := o.log.WithRun(result.RunID)

	release, err := o.runLock.TryAcquire(ctx)
	if err != nil {
		result.FinishedAt = o.now()
		if errors.Is(err, lock.ErrHeld) {
			log.Warn().Msg("Another run is in progress, skipping")
			return result, perrors.NewRunLock("another run is in progress", err)
		}
		return result, perrors.NewRunLock("failed to acquire run lock", err)
	}
	defer release()
	defer o.setState(StateIdle)

	// Fetch candidates
	o.setState(StateFetching)
	candidates, err := o.extractor.FetchCandidates(ctx)
	if err != nil {
		// Keep the extractor's own abort type (rate_limit); anything else is a fetch failure
		var pe *perrors.PipelineError
		if !errors.As(err, &pe) || !pe.AbortsRun() {
			pe = perrors.NewFetch("fetch candidates", err)
		}
		log.Error().Err(pe).Str("extractor", o.extractor.Name()).Msg("Fetch failed, run aborted")
		o.alert(ctx, fmt.Sprintf("Deal fetch failed (%s): %v", o.extractor.Name(), pe))
		result.FinishedAt = o.now()
		return &RunResult{RunID: result.RunID, StartedAt: result.StartedAt, FinishedAt: result.FinishedAt}, pe
	}
	result.Candidates = len(candidates)

	// Validate candidates
	o.setState(StateValidating)
	observations := o.validate(candidates, result)
	result.Accepted = len(observations)
	if result.Candidates > 0 && result.Accepted == 0 {
		log.Error().Int("candidates", result.Candidates).Msg("Cards found but none accepted, selectors may be outdated")
		o.alert(ctx, fmt.Sprintf("Found %d deal cards but accepted none; selectors may be outdated", result.Candidates))
	}

	// Record state and price history
	o.setState(StateReconciling)
	outcomes := o.reconcile(ctx, observations, result)

	// Transitions are already committed, so a shutdown must not drop their fan-out
	o.setState(StateNotifying)
	o.notify(context.WithoutCancel(ctx), outcomes, result)

	result.FinishedAt = o.now()
	log.Info().
		Int("candidates", result.Candidates).
		Int("accepted", result.Accepted).
		Int("rejected", len(result.Rejected)).
		Int("new", result.New).
		Int("improved", result.Improved).
		Int("unchanged", result.Unchanged).
		Int("notifications", result.Notifications).
		Int("failures", len(result.Failures)).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Run complete")

	return result, nil
}

// validate accepts candidates in parallel, preserving page order
func (o *Orchestrator) validate(candidates []deal.Candidate, result *RunResult) []deal.Observation {
	accepted := make([]*deal.Observation, len(candidates))
	rejections := make([]*Rejection, len(candidates))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, c := range candidates {
		g.Go(func() error {
			obs, err := o.validator.Validate(c)
			if err != nil {
				var pe *perrors.PipelineError
				reason := deal.ReasonMalformedKey
				if errors.As(err, &pe) && pe.Reason != "" {
					reason = deal.RejectReason(pe.Reason)
				}
				rejections[i] = &Rejection{ItemID: c.ItemID, Reason: reason}
				return nil
			}
			accepted[i] = &obs
			return nil
		})
	}
	_ = g.Wait()

	var observations []deal.Observation
	for i := range candidates {
		if rejections[i] != nil {
			result.Rejected = append(result.Rejected, *rejections[i])
			o.log.Debug().
				Str("item_id", rejections[i].ItemID).
				Str("reason", string(rejections[i].Reason)).
				Msg("Candidate rejected")
			continue
		}
		if accepted[i] != nil {
			observations = append(observations, *accepted[i])
		}
	}
	return observations
}

// reconcile records every observation and, for New or Improved ones, derives
// the badge from prior history and then appends the new price point
func (o *Orchestrator) reconcile(ctx context.Context, observations []deal.Observation, result *RunResult) []Outcome {
	outcomes := make([]*Outcome, len(observations))
	failures := make([][]*perrors.PipelineError, len(observations))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, obs := range observations {
		g.Go(func() error {
			outcomes[i], failures[i] = o.reconcileOne(ctx, obs)
			return nil
		})
	}
	_ = g.Wait()

	var out []Outcome
	for i := range observations {
		result.Failures = append(result.Failures, failures[i]...)
		if outcomes[i] == nil {
			continue
		}
		result.count(outcomes[i].Transition)
		out = append(out, *outcomes[i])
	}
	return out
}

func (o *Orchestrator) reconcileOne(ctx context.Context, obs deal.Observation) (*Outcome, []*perrors.PipelineError) {
	var failures []*perrors.PipelineError

	opCtx, cancel := context.WithTimeout(ctx, o.operationTimeout)
	transition, err := o.store.RecordObservation(opCtx, obs)
	cancel()
	if err != nil {
		// Never treat a store failure as Unchanged
		pe := perrors.NewStore(obs.ID, "record observation", err)
		o.log.Error().Err(err).Str("item_id", obs.ID).Msg("Reconciliation failed")
		return nil, []*perrors.PipelineError{pe}
	}

	outcome := &Outcome{Observation: obs, Transition: transition}
	if !transition.Notifies() || !obs.HasPrice() {
		return outcome, nil
	}

	// The state row is committed; finish its history even if the run is canceled
	ctx = context.WithoutCancel(ctx)

	opCtx, cancel = context.WithTimeout(ctx, o.operationTimeout)
	recent, err := o.history.Recent(opCtx, obs.ID, o.windowDays)
	cancel()
	if err != nil {
		failures = append(failures, perrors.NewStore(obs.ID, "read price history", err))
		o.log.Warn().Err(err).Str("item_id", obs.ID).Msg("Price history unavailable, sending without badge")
	} else {
		outcome.Badge = history.Classify(obs.Price.Decimal, recent)
	}

	opCtx, cancel = context.WithTimeout(ctx, o.operationTimeout)
	_, err = o.history.Append(opCtx, obs.ID, obs.Price, obs.ObservedAt)
	cancel()
	if err != nil {
		failures = append(failures, perrors.NewStore(obs.ID, "append price point", err))
		o.log.Warn().Err(err).Str("item_id", obs.ID).Msg("Failed to append price point")
	}

	return outcome, failures
}

// notify fans out New and Improved outcomes in page order
func (o *Orchestrator) notify(ctx context.Context, outcomes []Outcome, result *RunResult) {
	for i := range outcomes {
		outcome := &outcomes[i]
		if outcome.Transition.Notifies() {
			res := o.dispatcher.Dispatch(ctx, outcome.Observation, outcome.Badge)
			outcome.Fanout = &res
			if res.ChannelSent {
				result.Broadcasts++
			}
			result.Notifications += len(res.Notified)
			result.Failures = append(result.Failures, res.Failures...)
			o.publish(ctx, result.RunID, *outcome)
		}
		result.Outcomes = append(result.Outcomes, *outcome)
	}
}

func (o *Orchestrator) publish(ctx context.Context, runID string, outcome Outcome) {
	if o.publisher == nil {
		return
	}
	data, err := encodeEvent(runID, outcome, o.now())
	if err != nil {
		o.log.Warn().Err(err).Str("item_id", outcome.Observation.ID).Msg("Failed to encode deal event")
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, o.operationTimeout)
	defer cancel()
	if err := o.publisher.Publish(opCtx, EventKey, data); err != nil {
		o.log.Warn().Err(err).Str("item_id", outcome.Observation.ID).Msg("Failed to publish deal event")
	}
}

func (o *Orchestrator) alert(ctx context.Context, text string) {
	if o.alerter == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, o.operationTimeout)
	defer cancel()
	o.alerter.Alert(opCtx, text)
}
