package metadata

import "time"

var _ MetadataSink = (*NoopSink)(nil)

// NoopSink discards every observation. It exists for tests and callers
// that need a MetadataSink seam but do not care about its output.
type NoopSink struct{}

func (*NoopSink) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
}

func (*NoopSink) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, message string, attrs []Attribute) {
}

func (*NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
}

func (*NoopSink) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
}
