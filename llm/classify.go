package llm

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/openai/openai-go/v2"
)

// httpStatusCoder is satisfied by AWS smithy response errors.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// httpCoder is satisfied by Google API errors.
type httpCoder interface {
	HTTPCode() int
}

// wrapProviderError turns a vendor error into a model API error, marking
// client errors that a retry cannot fix as permanent.
func wrapProviderError(err error, vendor string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.PermanentModelAPI(err, "%s request abandoned", vendor)
	}
	if status := statusCode(err); status != 0 && !transientStatus(status) {
		return errors.PermanentModelAPI(err, "%s request rejected (HTTP %d)", vendor, status)
	}
	return errors.ModelAPI(err, "%s request failed", vendor)
}

func statusCode(err error) int {
	var anthropicErr *anthropic.Error
	if stderrors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var openaiErr *openai.Error
	if stderrors.As(err, &openaiErr) {
		return openaiErr.StatusCode
	}
	var sc httpStatusCoder
	if stderrors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	var hc httpCoder
	if stderrors.As(err, &hc) {
		return hc.HTTPCode()
	}
	return 0
}

func transientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests:
		return true
	case status >= 400 && status < 500:
		return false
	default:
		return true
	}
}

// Classify returns err as a model API error. Errors that already carry an
// agent error kind are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.KindOf(err) != 0 {
		return err
	}
	return wrapProviderError(err, "provider")
}
