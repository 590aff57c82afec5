package normalize

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type NormalizationErrorCause string

const (
	ErrCauseBrokenH1Invariant       NormalizationErrorCause = "broken H1 invariant"
	ErrCauseEmptyContent            NormalizationErrorCause = "empty content"
	ErrCauseBrokenAtomicBlock        NormalizationErrorCause = "broken atomic block"
	ErrCauseOrphanContent            NormalizationErrorCause = "orphan content before first heading"
	ErrCauseSkippedHeadingLevels     NormalizationErrorCause = "skipped heading levels"
	ErrCauseTitleExtractionFailed    NormalizationErrorCause = "title extraction failed"
	ErrCauseSectionDerivationFailed  NormalizationErrorCause = "section derivation failed"
	ErrCauseHashComputationFailed    NormalizationErrorCause = "hash computation failed"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBrokenH1Invariant, ErrCauseOrphanContent, ErrCauseSkippedHeadingLevels:
		return metadata.CauseInvariantViolation
	case ErrCauseEmptyContent, ErrCauseBrokenAtomicBlock:
		return metadata.CauseContentInvalid
	case ErrCauseTitleExtractionFailed, ErrCauseSectionDerivationFailed, ErrCauseHashComputationFailed:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
