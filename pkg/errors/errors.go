package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents extractor or network failures; the run is aborted
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeMalformed represents a candidate rejected by validation
	ErrorTypeMalformed ErrorType = "malformed_candidate"
	// ErrorTypeStore represents persistence failures for a single operation
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeDelivery represents a failed channel or personal send
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypeRateLimit represents a fetch blocked by the marketplace rate limit
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeRunLock represents a run refused because another run holds the lock
	ErrorTypeRunLock ErrorType = "run_lock"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError represents a failure raised while processing a run
type PipelineError struct {
	Type    ErrorType
	ItemID  string
	UserID  int64
	Reason  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	subject := e.subject()
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, subject, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, subject, e.Message)
}

func (e *PipelineError) subject() string {
	switch {
	case e.ItemID != "" && e.UserID != 0:
		return fmt.Sprintf("item=%s user=%d", e.ItemID, e.UserID)
	case e.ItemID != "":
		return "item=" + e.ItemID
	case e.UserID != 0:
		return fmt.Sprintf("user=%d", e.UserID)
	default:
		return "run"
	}
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// AbortsRun returns true if the error ends the whole run rather than a single item
func (e *PipelineError) AbortsRun() bool {
	switch e.Type {
	case ErrorTypeFetch, ErrorTypeRateLimit, ErrorTypeRunLock, ErrorTypeConfiguration:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, itemID, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		ItemID:  itemID,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(message string, err error) *PipelineError {
	return New(ErrorTypeFetch, "", message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *PipelineError {
	message := fmt.Sprintf("%s blocked for %v", source, duration)
	return New(ErrorTypeRateLimit, "", message, nil)
}

// NewMalformed creates a new malformed candidate error carrying the rejection reason
func NewMalformed(itemID, reason string) *PipelineError {
	e := New(ErrorTypeMalformed, itemID, "candidate rejected", nil)
	e.Reason = reason
	return e
}

// NewStore creates a new store error
func NewStore(itemID, message string, err error) *PipelineError {
	return New(ErrorTypeStore, itemID, message, err)
}

// NewDelivery creates a new delivery error for a user (0 for the channel)
func NewDelivery(itemID string, userID int64, message string, err error) *PipelineError {
	e := New(ErrorTypeDelivery, itemID, message, err)
	e.UserID = userID
	return e
}

// NewRunLock creates a new run lock error
func NewRunLock(message string, err error) *PipelineError {
	return New(ErrorTypeRunLock, "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err is, or wraps, a PipelineError of the given type
func IsType(err error, errType ErrorType) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type == errType
	}
	return false
}
