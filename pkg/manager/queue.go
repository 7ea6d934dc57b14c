package manager

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/effectai/engine-sub003/pkg/lib/collections"
	"github.com/effectai/engine-sub003/pkg/telemetry"
)

// WorkerQueue is the rotation of workers eligible for task assignment. A
// worker enters the queue after a successful register exchange and leaves on
// disconnect or ban. Assignment is round-robin: picking a worker rotates it
// to the back.
type WorkerQueue struct {
	queue *collections.RoundRobinQueue[peer.ID]
}

func NewWorkerQueue() *WorkerQueue {
	return &WorkerQueue{
		queue: collections.NewRoundRobinQueue[peer.ID](),
	}
}

// Enqueue makes the worker eligible for assignment. Enqueueing a worker that
// is already eligible is a no-op.
func (q *WorkerQueue) Enqueue(workerPeer peer.ID) {
	q.queue.Enqueue(workerPeer)
	telemetry.WorkerQueueDepth.Set(float64(q.queue.Len()))
}

// Next returns the worker at the front of the rotation and moves it to the
// back. The second return value is false if no worker is eligible.
func (q *WorkerQueue) Next() (peer.ID, bool) {
	return q.queue.Dequeue()
}

// Remove takes the worker out of the rotation. Removing an absent worker is
// a no-op.
func (q *WorkerQueue) Remove(workerPeer peer.ID) {
	q.queue.Remove(workerPeer)
	telemetry.WorkerQueueDepth.Set(float64(q.queue.Len()))
}

// Contains reports whether the worker is currently eligible.
func (q *WorkerQueue) Contains(workerPeer peer.ID) bool {
	return q.queue.Contains(workerPeer)
}

// Len returns the number of eligible workers.
func (q *WorkerQueue) Len() int {
	return q.queue.Len()
}

// Snapshot returns the current rotation order.
func (q *WorkerQueue) Snapshot() []peer.ID {
	return q.queue.Snapshot()
}
