package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrNotReady is returned by Run when the runner is not in the Ready state.
	ErrNotReady = errors.New("runner is not ready")
	// ErrEmptyPrompt is returned by Run for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// ConfigurationError reports bad or missing connection parameters. It is
// always raised before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// TransportError reports a failed or aborted network exchange: refused
// connections, DNS failures, timeouts and cancellation.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError carries a failure reported by the backend itself, such as an
// unknown model, a rejected credential or a rate limit.
type ProviderError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("provider: %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("provider: %d: %s", e.StatusCode, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classify maps a go-openai call error onto the runner taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &ProviderError{
			StatusCode: apiErr.HTTPStatusCode,
			Code:       code,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := string(reqErr.Body)
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &ProviderError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	return &TransportError{Err: err}
}

// isCancellation reports whether err stems from the caller's context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
