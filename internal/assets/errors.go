package assets

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type AssetsErrorCause string

const (
	ErrCauseImageDownloadFailure  AssetsErrorCause = "failed to download image"
	ErrCauseNetworkFailure        AssetsErrorCause = "network failure"
	ErrCauseHashError             AssetsErrorCause = "hash computation failed"
	ErrCausePathError             AssetsErrorCause = "path error"
	ErrCauseDiskFull              AssetsErrorCause = "disk full"
	ErrCauseWriteFailure          AssetsErrorCause = "write failure"
	ErrCauseAssetTooLarge         AssetsErrorCause = "asset too large"
	ErrCauseRequest5xx            AssetsErrorCause = "server error"
	ErrCauseRequestTooMany        AssetsErrorCause = "too many requests"
	ErrCauseRequestPageForbidden  AssetsErrorCause = "forbidden"
	ErrCauseRedirectLimitExceeded AssetsErrorCause = "redirect error"
	ErrCauseReadResponseBodyError AssetsErrorCause = "failed to read response body"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

func (e *AssetsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseImageDownloadFailure, ErrCauseNetworkFailure, ErrCauseRequest5xx,
		ErrCauseRequestTooMany, ErrCauseRedirectLimitExceeded, ErrCauseReadResponseBodyError:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestPageForbidden:
		return metadata.CausePolicyDisallow
	case ErrCauseDiskFull, ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	case ErrCauseHashError, ErrCauseAssetTooLarge:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
