package frontier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
)

func TestJobQueuesPrefersMarkdownOverHybrid(t *testing.T) {
	q := frontier.NewJobQueues()

	q.EnqueueHybrid(frontier.Job{JobID: "hybrid-1"})
	q.EnqueueMarkdown(frontier.Job{JobID: "markdown-1"})

	job, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, "markdown-1", job.JobID)

	job, ok = q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, "hybrid-1", job.JobID)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestJobQueuesLen(t *testing.T) {
	q := frontier.NewJobQueues()
	assert.Equal(t, 0, q.Len())

	q.EnqueueMarkdown(frontier.Job{JobID: "m1"})
	q.EnqueueHybrid(frontier.Job{JobID: "h1"})
	q.EnqueueHybrid(frontier.Job{JobID: "h2"})

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, q.MarkdownLen())
	assert.Equal(t, 2, q.HybridLen())
}
