package concurrency

import (
	"sync/atomic"

	"github.com/23skdu/gridscreen/internal/partition"
)

// ChunkCursor hands out consecutive chunks of a range to any number of
// workers. Claiming is a single atomic add, so faster workers simply claim
// more chunks.
type ChunkCursor struct {
	r     partition.Range
	chunk int
	next  atomic.Int64
}

// NewChunkCursor creates a cursor over r. chunk < 1 is treated as 1.
func NewChunkCursor(r partition.Range, chunk int) *ChunkCursor {
	if chunk < 1 {
		chunk = 1
	}
	c := &ChunkCursor{r: r, chunk: chunk}
	c.next.Store(int64(r.Start))
	return c
}

// Next claims the next chunk. ok is false once the range is exhausted.
func (c *ChunkCursor) Next() (partition.Range, bool) {
	end := int(c.next.Add(int64(c.chunk)))
	start := end - c.chunk
	if start >= c.r.End {
		return partition.Range{}, false
	}
	if end > c.r.End {
		end = c.r.End
	}
	return partition.Range{Start: start, End: end}, true
}
