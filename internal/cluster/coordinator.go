package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// round collects one value per participating rank for one collective call.
type round struct {
	need  int
	ranks *roaring.Bitmap
	parts map[int]any
	done  chan struct{}
}

// coordinator holds the rounds of every in-flight collective. It lives on the
// root: local ranks call it directly, remote ranks reach it through Flight.
type coordinator struct {
	size int

	mu     sync.Mutex
	rounds map[string]*round
	refs   int
	stop   chan struct{}
	closed bool
}

// newCoordinator creates a coordinator that closes after refs releases.
func newCoordinator(size, refs int) *coordinator {
	return &coordinator{
		size:   size,
		refs:   refs,
		rounds: make(map[string]*round),
		stop:   make(chan struct{}),
	}
}

// get returns the round for key, creating it on first use.
func (c *coordinator) get(key string, need int) (*round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.getLocked(key, need), nil
}

func (c *coordinator) getLocked(key string, need int) *round {
	r, ok := c.rounds[key]
	if !ok {
		r = &round{
			need:  need,
			ranks: roaring.New(),
			parts: make(map[int]any, need),
			done:  make(chan struct{}),
		}
		c.rounds[key] = r
	}
	return r
}

// contribute records rank's value for key. The round completes when need
// distinct ranks have contributed.
func (c *coordinator) contribute(key string, need, rank int, v any) (*round, error) {
	if err := checkMembership(rank, c.size); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	r := c.getLocked(key, need)
	if r.ranks.Contains(uint32(rank)) {
		return nil, fmt.Errorf("%w: rank %d in %s", ErrDuplicateContribution, rank, key)
	}
	if int(r.ranks.GetCardinality()) >= r.need {
		return nil, fmt.Errorf("%w: %s already complete", ErrDuplicateContribution, key)
	}
	r.ranks.Add(uint32(rank))
	r.parts[rank] = v
	if int(r.ranks.GetCardinality()) == r.need {
		close(r.done)
	}
	return r, nil
}

// missing lists the ranks of a full-group round that have not contributed.
func (c *coordinator) missing(r *round) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := roaring.New()
	all.AddRange(0, uint64(c.size))
	all.AndNot(r.ranks)
	return all.ToArray()
}

// await blocks until r completes, ctx ends or the coordinator closes.
func (c *coordinator) await(ctx context.Context, r *round) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		if r.need == c.size {
			return fmt.Errorf("%w: waiting on ranks %v", ctx.Err(), c.missing(r))
		}
		return ctx.Err()
	case <-c.stop:
		select {
		case <-r.done:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (c *coordinator) drop(key string) {
	c.mu.Lock()
	delete(c.rounds, key)
	c.mu.Unlock()
}

// release drops one reference and closes the coordinator on the last one.
func (c *coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.refs--
	if c.refs > 0 {
		return
	}
	c.closed = true
	close(c.stop)
	c.rounds = nil
}
