package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

// SanitizedHTMLDoc is the output of a successful sanitization pass: the
// repaired content node plus every hyperlink discovered while walking it.
type SanitizedHTMLDoc struct {
	contentNode    *html.Node
	discoveredUrls []url.URL
}

func (s *SanitizedHTMLDoc) ContentNode() *html.Node {
	return s.contentNode
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// headingInfo captures a heading node's level and rendered text, in DOM order,
// for use by the repairability checks in repair.go.
type headingInfo struct {
	level int
	node  *html.Node
	text  string
}

// RepairableResult is the outcome of isRepairable: either the document can
// proceed to structural repair, or Reason names the invariant it violates.
type RepairableResult struct {
	Repairable bool
	Reason     UnrepairabilityReason
}
