package worker

import (
	"context"
	"time"

	"sjsage522/dealalert/internal/pipeline"
	"sjsage522/dealalert/logger"
	perrors "sjsage522/dealalert/pkg/errors"
	"sjsage522/dealalert/services/publisher"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// Worker triggers pipeline runs on an interval
type Worker struct {
	runner    Runner
	publisher publisher.Publisher
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a new worker. pub may be nil when events are not published.
func NewWorker(runner Runner, pub publisher.Publisher, interval time.Duration) *Worker {
	return &Worker{
		runner:    runner,
		publisher: pub,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Start runs the pipeline immediately and then every interval until ctx is done
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce runs the pipeline and then trims the event streams
func (w *Worker) RunOnce(ctx context.Context) *pipeline.RunResult {
	start := time.Now()
	result, err := w.runner.Run(ctx)
	elapsed := time.Since(start)

	switch {
	case perrors.IsType(err, perrors.ErrorTypeRunLock):
		w.log.Warn().Err(err).Msg("Run skipped")
	case err != nil:
		w.log.Error().Err(err).Dur("elapsed", elapsed).Msg("Run aborted")
	default:
		w.log.Info().
			Str("run_id", result.RunID).
			Int("accepted", result.Accepted).
			Int("notifications", result.Notifications).
			Int("failures", len(result.Failures)).
			Dur("elapsed", elapsed).
			Msg("Run finished")
	}

	// Trim all streams after each run
	if w.publisher != nil && ctx.Err() == nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			w.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}
	return result
}
