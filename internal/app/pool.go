package app

import "context"

// chunkRange is one fixed-size byte range of a stream, bounds inclusive.
type chunkRange struct {
	index int
	start int64
	end   int64
}

// size returns the number of bytes the range covers.
func (c chunkRange) size() int64 {
	return c.end - c.start + 1
}

// planChunks splits size bytes into ranges of at most chunkSize. The last
// range absorbs the remainder.
func planChunks(size, chunkSize int64) []chunkRange {
	if size <= 0 {
		return nil
	}
	if chunkSize <= 0 || chunkSize >= size {
		return []chunkRange{{index: 0, start: 0, end: size - 1}}
	}

	var chunks []chunkRange
	for start := int64(0); start < size; start += chunkSize {
		end := start + chunkSize - 1
		if end > size-1 {
			end = size - 1
		}
		chunks = append(chunks, chunkRange{index: len(chunks), start: start, end: end})
	}
	return chunks
}

// slotPool bounds concurrent chunk transfers across ALL videos in a batch.
// Videos interleave their chunk work against the same slots rather than
// multiplying the connection count.
type slotPool struct {
	slots chan struct{}
}

func newSlotPool(n int) *slotPool {
	if n < 1 {
		n = 1
	}
	return &slotPool{slots: make(chan struct{}, n)}
}

// Acquire blocks until a transfer slot is free or ctx is done.
func (p *slotPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (p *slotPool) Release() {
	<-p.slots
}
