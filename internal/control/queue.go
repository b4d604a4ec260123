package control

import "sync/atomic"

// QueueStats are the command queue counters.
type QueueStats struct {
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// Queue is a bounded FIFO of commands. Any number of goroutines may
// enqueue; exactly one (the engine) dequeues. Neither side ever blocks.
type Queue struct {
	ch       chan Command
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewQueue creates a queue holding at most capacity commands.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Command, capacity)}
}

// Enqueue adds cmd and reports whether it was accepted. A full queue
// rejects the command and leaves queued commands untouched.
func (q *Queue) Enqueue(cmd Command) bool {
	select {
	case q.ch <- cmd:
		q.accepted.Add(1)
		return true
	default:
		q.rejected.Add(1)
		return false
	}
}

// TryDequeue removes the oldest command, if any.
func (q *Queue) TryDequeue() (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Depth:    len(q.ch),
		Capacity: cap(q.ch),
		Accepted: q.accepted.Load(),
		Rejected: q.rejected.Load(),
	}
}
