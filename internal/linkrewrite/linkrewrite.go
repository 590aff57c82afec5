// Package linkrewrite rewrites the links inside a converted Markdown
// document so they point at the crawl's own on-disk layout instead of
// the original site: in-scope links become relative paths to the
// sibling page.md files the scheduler will (or already did) write,
// and out-of-scope links are tagged with an external marker so a
// reader can tell at a glance which links leave the crawled site.
package linkrewrite

import (
	"bytes"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rohmanhakim/docs-crawler/internal/urlmap"
)

// ExternalMarker is appended to the link text of any Markdown link
// that resolves outside the crawl's scope.
const ExternalMarker = " ↗"

// markdownLink matches a single `[text](href "title")` Markdown link.
var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

// bareURL matches a bare http(s) URL in plain text, to be linkified
// before RewriteLinksInResult runs over it.
var bareURL = regexp.MustCompile(`(^|[\s])(https?://[^\s)]+)`)

// LinkifyBareURLs converts bare http(s) URLs appearing on lines that
// contain no existing Markdown link into `[url](url)` links, so link
// rewriting and the external marker apply uniformly regardless of
// whether the source HTML used an <a> tag.
func LinkifyBareURLs(content []byte) []byte {
	lines := bytes.Split(content, []byte("\n"))
	for i, line := range lines {
		if bytes.Contains(line, []byte("](")) {
			continue
		}
		lines[i] = bareURL.ReplaceAll(line, []byte(`$1[$2]($2)`))
	}
	return bytes.Join(lines, []byte("\n"))
}

// RewriteLinksInResult rewrites every Markdown link in content relative
// to sourceURL. A link is in scope when its host matches scopeOrigin
// and its path falls under scopePathPrefix; in-scope links are
// rewritten to a relative path to the target's page.md under outDir,
// computed with the same mapping the storage sink uses. Everything
// else is left as an absolute URL and tagged with ExternalMarker.
// Rewriting is idempotent: a link whose text already carries
// ExternalMarker is left untouched.
func RewriteLinksInResult(
	content []byte,
	sourceURL url.URL,
	scopeOrigin string,
	scopePathPrefix string,
	outDir string,
) []byte {
	return markdownLink.ReplaceAllFunc(content, func(match []byte) []byte {
		groups := markdownLink.FindSubmatch(match)
		text := string(groups[1])
		href := string(groups[2])

		if strings.HasSuffix(text, ExternalMarker) {
			return match
		}

		resolved, err := sourceURL.Parse(href)
		if err != nil {
			return match
		}

		if resolved.Scheme != "" && resolved.Scheme != "http" && resolved.Scheme != "https" {
			return match
		}

		inScope := resolved.Host == scopeOrigin && urlmap.IsPathInScope(resolved.Path, scopePathPrefix)
		if !inScope {
			return []byte("[" + text + ExternalMarker + "](" + resolved.String() + ")")
		}

		target := urlmap.BuildOutputPaths(*resolved, outDir)
		source := urlmap.BuildOutputPaths(sourceURL, outDir)
		rel := relativePath(source.Dir, target.PagePath)
		return []byte("[" + text + "](" + rel + ")")
	})
}

// DiscoverLinks extracts every Markdown link's href from content and
// resolves it against sourceURL, for the markdown-worker path: a fetched
// Markdown body never passes through the HTML sanitizer, so it has no
// other way to surface crawl candidates to the scheduler. Only http(s)
// targets are returned, deduplicated by resolved URL.
func DiscoverLinks(content []byte, sourceURL url.URL) []url.URL {
	seen := make(map[string]struct{})
	var links []url.URL
	for _, groups := range markdownLink.FindAllSubmatch(content, -1) {
		href := string(groups[2])
		resolved, err := sourceURL.Parse(href)
		if err != nil {
			continue
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		resolved.Fragment = ""
		key := resolved.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, *resolved)
	}
	return links
}

// relativePath computes a forward-slashed relative path from fromDir
// (a directory) to toFile (a file), suitable for embedding in Markdown.
func relativePath(fromDir, toFile string) string {
	rel, err := filepath.Rel(fromDir, toFile)
	if err != nil {
		return toFile
	}
	return filepath.ToSlash(rel)
}
