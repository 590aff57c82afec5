package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/urlmap"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

/*
Responsibilities
- Persist Markdown files in the host/path-segment on-disk layout
- Write the page, clutter, and llms.txt-companion variants
- Ensure deterministic filenames via urlmap

Output Characteristics
- Stable directory layout, one directory per crawled URL
- Idempotent writes
- Overwrite-safe reruns; llms variants are skipped when already present
  unless OverwriteLlms is set
*/

type Sink interface {
	Write(
		sourceURL url.URL,
		outputDir string,
		normalizedDoc normalize.NormalizedMarkdownDoc,
		artifacts ArtifactSet,
		hashAlgo hashutil.HashAlgo,
	) (WriteResult, failure.ClassifiedError)
}

type LocalSink struct {
	metadataSink metadata.MetadataSink
}

func NewLocalSink(
	metadataSink metadata.MetadataSink,
) LocalSink {
	return LocalSink{
		metadataSink: metadataSink,
	}
}

func (s *LocalSink) Write(
	sourceURL url.URL,
	outputDir string,
	normalizedDoc normalize.NormalizedMarkdownDoc,
	artifacts ArtifactSet,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, failure.ClassifiedError) {
	writeResult, writtenPaths, err := write(sourceURL, outputDir, normalizedDoc, artifacts, hashAlgo)
	if err != nil {
		var storageError *StorageError
		errors.As(err, &storageError)
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalSink.Write",
			mapStorageErrorToMetadataCause(storageError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, normalizedDoc.Frontmatter().SourceURL()),
				metadata.NewAttr(metadata.AttrWritePath, storageError.Path),
			},
		)
		return WriteResult{}, storageError
	}
	for kind, path := range writtenPaths {
		s.metadataSink.RecordArtifact(
			kind,
			path,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, path),
				metadata.NewAttr(metadata.AttrURL, normalizedDoc.Frontmatter().SourceURL()),
				metadata.NewAttr(metadata.AttrField, writeResult.URLHash()),
			},
		)
	}
	return writeResult, nil
}

// frontmatterBlock renders the mandatory 4-line frontmatter block plus
// the document title heading that prefixes every written variant.
func frontmatterBlock(fm normalize.Frontmatter) string {
	return fmt.Sprintf(
		"---\nSource: %s\nFetched: %s\n---\n\n# %s\n\n",
		fm.SourceURL(),
		fm.FetchedAt().UTC().Format(time.RFC3339),
		fm.Title(),
	)
}

// shouldWriteLlms reports whether an llms-companion variant at path
// should be (re)written: always when overwrite is requested, otherwise
// only if nothing is there yet.
func shouldWriteLlms(path string, overwrite bool) bool {
	if overwrite {
		return true
	}
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

func write(
	sourceURL url.URL,
	outputDir string,
	normalizedDoc normalize.NormalizedMarkdownDoc,
	artifacts ArtifactSet,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, map[metadata.ArtifactKind]string, failure.ClassifiedError) {
	fm := normalizedDoc.Frontmatter()

	// Hash the canonical URL for the write result's stable identity.
	urlHashFull, err := hashutil.HashBytes([]byte(fm.CanonicalURL()), hashAlgo)
	if err != nil {
		return WriteResult{}, nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
			Path:      "",
		}
	}
	urlHash := urlHashFull[:12]

	paths := urlmap.BuildOutputPaths(sourceURL, outputDir)

	if err := fileutil.EnsureDir(paths.Dir); err != nil {
		var fileErr *fileutil.FileError
		if errors.As(err, &fileErr) {
			cause := ErrCauseWriteFailure
			retryable := false
			if fileErr.Cause == fileutil.ErrCausePathError {
				cause = ErrCausePathError
				retryable = true
			}
			return WriteResult{}, nil, &StorageError{
				Message:   err.Error(),
				Retryable: retryable,
				Cause:     cause,
				Path:      paths.Dir,
			}
		}
		return WriteResult{}, nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			Path:      paths.Dir,
		}
	}

	header := frontmatterBlock(fm)
	written := make(map[metadata.ArtifactKind]string, 4)

	if err := writeFile(paths.PagePath, header+string(normalizedDoc.Content())); err != nil {
		return WriteResult{}, nil, err
	}
	written[metadata.ArtifactMarkdown] = paths.PagePath

	if artifacts.WriteClutter && len(artifacts.ClutterContent) > 0 {
		if err := writeFile(paths.ClutterPath, header+string(artifacts.ClutterContent)); err != nil {
			return WriteResult{}, nil, err
		}
		written[metadata.ArtifactClutter] = paths.ClutterPath
	}

	if len(artifacts.LlmsContent) > 0 && shouldWriteLlms(paths.LlmsPath, artifacts.OverwriteLlms) {
		if err := writeFile(paths.LlmsPath, header+string(artifacts.LlmsContent)); err != nil {
			return WriteResult{}, nil, err
		}
		written[metadata.ArtifactLlms] = paths.LlmsPath
	}

	if len(artifacts.LlmsFullContent) > 0 && shouldWriteLlms(paths.LlmsFullPath, artifacts.OverwriteLlms) {
		if err := writeFile(paths.LlmsFullPath, header+string(artifacts.LlmsFullContent)); err != nil {
			return WriteResult{}, nil, err
		}
		written[metadata.ArtifactLlms] = paths.LlmsFullPath
	}

	writeResult := NewWriteResult(urlHash, paths.PagePath, fm.ContentHash())
	return writeResult, written, nil
}

func writeFile(path string, content string) failure.ClassifiedError {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      path,
		}
	}
	return nil
}
