package render

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type RenderErrorCause string

const (
	ErrCauseBrowserUnavailable RenderErrorCause = "browser unavailable"
	ErrCauseNavigationFailed   RenderErrorCause = "navigation failed"
	ErrCauseTimeout            RenderErrorCause = "render timeout"
)

type RenderError struct {
	Message   string
	Retryable bool
	Cause     RenderErrorCause
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error: %s", e.Cause)
}

func (e *RenderError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RenderError) IsRetryable() bool {
	return e.Retryable
}
