// Package ai wraps the chat-completion API used by all agents.
// It adds bounded retry with exponential backoff and classifies failures
// into transient (retry-worthy) and permanent errors so the agent layer's
// catch-all does not mask retryable conditions from the retry loop.
package ai

import (
	"context"
	"errors"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorClass represents the category of a gateway error for retry decisions.
type ErrorClass int

const (
	// ErrorClassTransient indicates a temporary error that should be retried.
	ErrorClassTransient ErrorClass = iota

	// ErrorClassPermanent indicates a non-retryable error.
	ErrorClassPermanent
)

// String returns the string representation of ErrorClass.
func (e ErrorClass) String() string {
	switch e {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps a gateway error with its classification.
type ClassifiedError struct {
	Class    ErrorClass
	Original error
}

// Error returns a formatted error message.
func (c *ClassifiedError) Error() string {
	if c.Original == nil {
		return "gateway error: class=" + c.Class.String()
	}
	return c.Class.String() + ": " + c.Original.Error()
}

// Unwrap returns the original error for errors.Is/As.
func (c *ClassifiedError) Unwrap() error {
	return c.Original
}

// IsTransient returns true if the error is temporary and should be retried.
func (c *ClassifiedError) IsTransient() bool {
	return c.Class == ErrorClassTransient
}

// ClassifyError analyzes a completion error and determines its class.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	// Context cancellation is the caller's decision, never retried here.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Class: ErrorClassPermanent, Original: err}
	}

	// API-level errors carry an HTTP status code.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &ClassifiedError{Class: ErrorClassTransient, Original: err}
		case apiErr.HTTPStatusCode >= 500:
			return &ClassifiedError{Class: ErrorClassTransient, Original: err}
		default:
			return &ClassifiedError{Class: ErrorClassPermanent, Original: err}
		}
	}

	// Network-level errors are worth retrying.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ClassifiedError{Class: ErrorClassTransient, Original: err}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily unavailable") {
		return &ClassifiedError{Class: ErrorClassTransient, Original: err}
	}

	return &ClassifiedError{Class: ErrorClassPermanent, Original: err}
}
