package sim

import (
	"container/list"
)

// A QueueEntry is anything that can wait in an EventQueue. Entries are
// compared by identity, so they are typically pointers.
type QueueEntry interface {
	EvTime() VTimeInSec
}

// EventQueue is a queue of entries ordered by their wake-up time. Entries with
// the same time keep their insertion order unless they are inserted with the
// prior flag, which puts them in front of their time band.
//
// EventQueue is not safe for concurrent use. The Scheduler guards its queue
// with its own lock.
type EventQueue struct {
	l      *list.List
	index  map[QueueEntry]*list.Element
	timeOf func(QueueEntry) VTimeInSec
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueue {
	return newEventQueueFunc(QueueEntry.EvTime)
}

// newEventQueueFunc creates a queue that reads the time of its entries with
// timeOf. The scheduler sorts processes on their raw wake-up time, because
// Process.EvTime takes the lock the scheduler already holds.
func newEventQueueFunc(timeOf func(QueueEntry) VTimeInSec) *EventQueue {
	return &EventQueue{
		l:      list.New(),
		index:  make(map[QueueEntry]*list.Element),
		timeOf: timeOf,
	}
}

// Len returns the number of entries in the queue.
func (q *EventQueue) Len() int {
	return q.l.Len()
}

// Contains tells if the entry is in the queue.
func (q *EventQueue) Contains(e QueueEntry) bool {
	_, ok := q.index[e]
	return ok
}

// Insert adds an entry while keeping the queue sorted. The entry goes before
// the first entry that wakes up later, or, if prior is set, before the first
// entry that wakes up at the same time or later.
func (q *EventQueue) Insert(e QueueEntry, prior bool) error {
	if q.Contains(e) {
		return ErrDuplicateEntry
	}

	at := q.timeOf(e)

	var ele *list.Element
	for ele = q.l.Front(); ele != nil; ele = ele.Next() {
		t := q.timeOf(ele.Value.(QueueEntry))
		if prior && t >= at {
			break
		}

		if !prior && t > at {
			break
		}
	}

	if ele != nil {
		q.index[e] = q.l.InsertBefore(e, ele)
	} else {
		q.index[e] = q.l.PushBack(e)
	}

	return nil
}

// InsertBefore puts the entry immediately in front of the anchor. It fails
// with ErrEntryNotFound if the anchor is not queued.
func (q *EventQueue) InsertBefore(e, anchor QueueEntry) error {
	if q.Contains(e) {
		return ErrDuplicateEntry
	}

	ele, ok := q.index[anchor]
	if !ok {
		return ErrEntryNotFound
	}

	q.index[e] = q.l.InsertBefore(e, ele)

	return nil
}

// InsertAfter puts the entry immediately behind the anchor. It fails with
// ErrEntryNotFound if the anchor is not queued.
func (q *EventQueue) InsertAfter(e, anchor QueueEntry) error {
	if q.Contains(e) {
		return ErrDuplicateEntry
	}

	ele, ok := q.index[anchor]
	if !ok {
		return ErrEntryNotFound
	}

	q.index[e] = q.l.InsertAfter(e, ele)

	return nil
}

// Remove unlinks the entry from the queue.
func (q *EventQueue) Remove(e QueueEntry) error {
	ele, ok := q.index[e]
	if !ok {
		return ErrEntryNotFound
	}

	q.l.Remove(ele)
	delete(q.index, e)

	return nil
}

// RemoveHead unlinks and returns the entry with the earliest time.
func (q *EventQueue) RemoveHead() (QueueEntry, error) {
	front := q.l.Front()
	if front == nil {
		return nil, ErrEmptyQueue
	}

	e := q.l.Remove(front).(QueueEntry)
	delete(q.index, e)

	return e, nil
}

// Peek returns the entry at the front of the queue without removing it. It
// returns nil if the queue is empty.
func (q *EventQueue) Peek() QueueEntry {
	front := q.l.Front()
	if front == nil {
		return nil
	}

	return front.Value.(QueueEntry)
}

// NextAfter returns the entry that follows e. It returns nil if e is the last
// entry. If e is not queued, it is the running entry, and the entry to run
// after it is the head of the queue.
func (q *EventQueue) NextAfter(e QueueEntry) (QueueEntry, error) {
	if q.l.Len() == 0 || e == nil {
		return nil, ErrEmptyQueue
	}

	ele, ok := q.index[e]
	if !ok {
		return q.l.Front().Value.(QueueEntry), nil
	}

	next := ele.Next()
	if next == nil {
		return nil, nil
	}

	return next.Value.(QueueEntry), nil
}

// Entries returns the queued entries in dispatch order.
func (q *EventQueue) Entries() []QueueEntry {
	entries := make([]QueueEntry, 0, q.l.Len())
	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		entries = append(entries, ele.Value.(QueueEntry))
	}

	return entries
}

// Clear removes all the entries and returns them in dispatch order.
func (q *EventQueue) Clear() []QueueEntry {
	entries := q.Entries()

	q.l.Init()
	q.index = make(map[QueueEntry]*list.Element)

	return entries
}
