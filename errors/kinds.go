package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind classifies an AgentError.
type Kind int

const (
	// KindConfig is a bad or missing configuration value. Never retried.
	KindConfig Kind = iota + 1
	// KindModelAPI is a failed call to the model provider.
	KindModelAPI
	// KindPlanning means the provider's answer could not be read as criteria.
	KindPlanning
	// KindExecution means a criterion's action could not be parsed or applied.
	KindExecution
	// KindNotConfigured is an operation attempted without a usable agent,
	// or in a state that does not allow it.
	KindNotConfigured
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindModelAPI:
		return "model_api"
	case KindPlanning:
		return "planning"
	case KindExecution:
		return "execution"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// Sentinels for matching with Is. Every *AgentError matches the sentinel of
// its Kind.
var (
	ErrConfig        = stderrors.New("configuration error")
	ErrModelAPI      = stderrors.New("model API error")
	ErrPlanning      = stderrors.New("planning failed")
	ErrExecution     = stderrors.New("execution failed")
	ErrNotConfigured = stderrors.New("agent not configured")
)

// AgentError is the error type returned by every public agent operation.
type AgentError struct {
	Kind    Kind
	Message string
	Err     error

	// permanent marks a model API failure that retrying cannot fix
	// (rejected credentials, malformed request).
	permanent bool
}

func (e *AgentError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	switch e.Kind {
	case KindConfig:
		return "Configuration error: " + msg
	case KindModelAPI:
		return "Model API error: " + msg
	case KindPlanning:
		return "Planning failed: " + msg
	case KindExecution:
		return "Execution failed: " + msg
	case KindNotConfigured:
		if msg == "" {
			return "Agent not configured. Please configure the agent first."
		}
		return "Agent not configured: " + msg
	default:
		return msg
	}
}

func (e *AgentError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *AgentError) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// Retryable reports whether the failure is transient.
func (e *AgentError) Retryable() bool {
	return e.Kind == KindModelAPI && !e.permanent
}

func sentinel(k Kind) error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindModelAPI:
		return ErrModelAPI
	case KindPlanning:
		return ErrPlanning
	case KindExecution:
		return ErrExecution
	case KindNotConfigured:
		return ErrNotConfigured
	}
	return nil
}

// Config returns a configuration error with the given message.
func Config(msg string) *AgentError {
	return &AgentError{Kind: KindConfig, Message: msg}
}

// ModelAPI wraps a provider failure. The result is treated as transient.
func ModelAPI(err error, format string, a ...interface{}) *AgentError {
	return &AgentError{Kind: KindModelAPI, Message: fmt.Sprintf(format, a...), Err: err}
}

// PermanentModelAPI wraps a provider failure that must not be retried.
func PermanentModelAPI(err error, format string, a ...interface{}) *AgentError {
	e := ModelAPI(err, format, a...)
	e.permanent = true
	return e
}

// Planning returns a planning error.
func Planning(format string, a ...interface{}) *AgentError {
	return &AgentError{Kind: KindPlanning, Message: fmt.Sprintf(format, a...)}
}

// Execution wraps a failure to parse or apply a criterion's action.
// err may be nil.
func Execution(err error, format string, a ...interface{}) *AgentError {
	return &AgentError{Kind: KindExecution, Message: fmt.Sprintf(format, a...), Err: err}
}

// NotConfigured returns the precondition error for an unusable agent.
// An empty format yields the plain "not configured" message.
func NotConfigured(format string, a ...interface{}) *AgentError {
	return &AgentError{Kind: KindNotConfigured, Message: fmt.Sprintf(format, a...)}
}

// KindOf returns the kind of the first AgentError in err's chain, or 0.
func KindOf(err error) Kind {
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// IsRetryable reports whether err is a transient model API failure.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}
