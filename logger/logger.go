package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger with the given configuration
func Init() {
	level := getLogLevel()

	// Set global time format and level
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	// Human readable output outside production
	var output io.Writer = os.Stdout
	if os.Getenv("DEALALERT_ENVIRONMENT") != "production" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	// Create logger
	Default = New(output, level)

	Default.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New creates a logger writing to w at the given level
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("DEALALERT_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithRun tags every event with the pipeline run id
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{logger: l.logger.With().Str("run_id", runID).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

func forComponent(name string) *Logger {
	if Default == nil {
		Init()
	}
	return Default.WithField("component", name)
}

// ForPipeline creates a logger for the pipeline orchestrator
func ForPipeline() *Logger { return forComponent("pipeline") }

// ForStore creates a logger for the store
func ForStore() *Logger { return forComponent("store") }

// ForFanout creates a logger for the notification fan-out engine
func ForFanout() *Logger { return forComponent("fanout") }

// ForExtractor creates a logger for a named extractor
func ForExtractor(name string) *Logger {
	return forComponent("extractor").WithField("extractor", name)
}

// ForNotifier creates a logger for the notifier
func ForNotifier() *Logger { return forComponent("notifier") }

// ForWorker creates a logger for the worker
func ForWorker() *Logger { return forComponent("worker") }

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger { return forComponent("publisher") }

// ForCache creates a logger for the cache
func ForCache() *Logger { return forComponent("cache") }
