package usecase

import (
	"sync"

	"github.com/aousabdo/meetingsage/internal/domain"
)

// FrameQueue is an unbounded FIFO buffer of captured audio frames shared
// between the capture source and the batch consumer. Push never blocks the
// producer; PopBatch drains without blocking.
type FrameQueue struct {
	mu     sync.Mutex
	frames []domain.AudioFrame
}

func NewFrameQueue() *FrameQueue {
	return &FrameQueue{}
}

// Push appends a frame.
func (q *FrameQueue) Push(frame domain.AudioFrame) {
	q.mu.Lock()
	q.frames = append(q.frames, frame)
	q.mu.Unlock()
}

// PopBatch removes and returns up to maxN frames in arrival order. It returns
// an empty slice immediately when the queue is empty.
func (q *FrameQueue) PopBatch(maxN int) []domain.AudioFrame {
	if maxN <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	if n == 0 {
		return nil
	}
	if n > maxN {
		n = maxN
	}

	batch := q.frames[:n:n]
	q.frames = q.frames[n:]
	return batch
}

// Len reports the current queue depth.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
