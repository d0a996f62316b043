package reader

import (
	"log/slog"
	"sync"
)

// notificationQueueCapacity is the bounded capacity of a NotificationQueue.
const notificationQueueCapacity = 1000

// NotificationQueue is a bounded, multi-producer FIFO of NotificationEvents.
// Pushing past capacity drops the oldest unconsumed event, logging the
// discard, so a slow or absent consumer cannot grow the queue without
// bound. A buffered channel cannot express the non-consuming peek and
// exact drop count callers need, so this is an explicit slice-backed
// FIFO under a mutex.
type NotificationQueue struct {
	mu         sync.Mutex
	events     []NotificationEvent
	dropped    uint64
	logger     *slog.Logger
	readerName string
	metrics    MetricsReporter
}

// NewNotificationQueue constructs an empty queue reporting depth/drop
// telemetry for readerName via metrics (defaultMetrics if nil).
func NewNotificationQueue(logger *slog.Logger, readerName string, metrics MetricsReporter) *NotificationQueue {
	if metrics == nil {
		metrics = defaultMetrics
	}
	return &NotificationQueue{logger: logger, readerName: readerName, metrics: metrics}
}

// Push enqueues ev, discarding the oldest event if the queue is now over
// capacity.
func (q *NotificationQueue) Push(ev NotificationEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	for len(q.events) > notificationQueueCapacity {
		discarded := q.events[0]
		q.events = q.events[1:]
		q.dropped++
		q.metrics.IncNotificationQueueDrop(q.readerName)
		q.logger.Warn("notification queue dropped oldest event",
			"kind", discarded.Kind, "tagIdHex", discarded.TagIDHex, "totalDropped", q.dropped)
	}
	q.metrics.SetNotificationQueueDepth(q.readerName, len(q.events))
}

// PollAll drains the queue to a caller-owned snapshot, emptying it.
func (q *NotificationQueue) PollAll() []NotificationEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	q.metrics.SetNotificationQueueDepth(q.readerName, 0)
	return out
}

// PeekAll returns a non-consuming snapshot of the current queue contents.
func (q *NotificationQueue) PeekAll() []NotificationEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]NotificationEvent, len(q.events))
	copy(out, q.events)
	return out
}

// Count returns the current queue length.
func (q *NotificationQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns the cumulative number of events discarded for capacity.
func (q *NotificationQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
