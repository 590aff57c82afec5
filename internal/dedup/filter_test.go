package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohmanhakim/docs-crawler/internal/dedup"
)

func TestKnownURLsAddContains(t *testing.T) {
	known := dedup.NewKnownURLs()

	assert.False(t, known.Contains("https://example.com/a"))
	known.Add("https://example.com/a")
	assert.True(t, known.Contains("https://example.com/a"))
	assert.False(t, known.Contains("https://example.com/b"))
}

func TestProbabilisticFilterNoFalseNegatives(t *testing.T) {
	filter := dedup.NewProbabilisticFilter(1<<16, 4)

	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c/d/e",
	}
	for _, u := range urls {
		filter.Add(u)
	}

	for _, u := range urls {
		assert.True(t, filter.MightContain(u))
	}
}

func TestProbabilisticFilterUnaddedLikelyAbsent(t *testing.T) {
	filter := dedup.NewProbabilisticFilter(1<<16, 4)
	filter.Add("https://example.com/a")

	assert.False(t, filter.MightContain("https://example.com/never-added"))
}
