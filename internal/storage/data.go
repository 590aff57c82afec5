package storage

// Persistence

// ArtifactSet bundles every Markdown variant a single crawled page may
// produce, alongside the flags that decide whether the optional
// variants are actually written this run.
type ArtifactSet struct {
	// ClutterContent is the page's non-primary material (discovered
	// links, asset diagnostics) written to clutter.md. Ignored unless
	// WriteClutter is set.
	ClutterContent []byte
	// LlmsContent is the condensed heading outline written to .llms.md.
	LlmsContent []byte
	// LlmsFullContent is the complete page body written to llms-full.md.
	LlmsFullContent []byte

	WriteClutter  bool
	OverwriteLlms bool
}

type WriteResult struct {
	urlHash     string // identity (filename without extension)
	path        string
	contentHash string
}

func NewWriteResult(
	urlHash string,
	path string,
	contentHash string,
) WriteResult {
	return WriteResult{
		urlHash:     urlHash,
		path:        path,
		contentHash: contentHash,
	}
}
func (w *WriteResult) URLHash() string {
	return w.urlHash
}

func (w *WriteResult) Path() string {
	return w.path
}

func (w *WriteResult) ContentHash() string {
	return w.contentHash
}
