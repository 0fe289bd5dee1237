// Package typeahead buffers keystrokes that arrive while the keyboard
// is locked, replaying them in order once the host restores it.
package typeahead

import (
	"errors"
	"sync"

	"github.com/fieldexit/go5250/internal/keyboard"
)

// DefaultCapacity bounds the queue when the caller does not configure
// a limit.
const DefaultCapacity = 256

// ErrFull is returned when a push would exceed the queue capacity.
// Keystrokes are never evicted or silently dropped; the caller decides
// whether to retry or fail.
var ErrFull = errors.New("type-ahead queue full")

// Queue is a fixed-capacity keystroke ring. It is safe for concurrent
// use: automation goroutines push while the session loop drains.
type Queue struct {
	mu       sync.Mutex
	keys     []keyboard.Key
	head     int // index of next write position
	count    int
	capacity int
}

// New creates a queue holding at most capacity keystrokes.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		keys:     make([]keyboard.Key, capacity),
		capacity: capacity,
	}
}

// Push appends keystrokes in order. It is all-or-nothing: when the
// batch does not fit, nothing is queued and ErrFull is returned.
func (q *Queue) Push(keys ...keyboard.Key) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count+len(keys) > q.capacity {
		return ErrFull
	}
	for _, k := range keys {
		q.keys[q.head] = k
		q.head = (q.head + 1) % q.capacity
		q.count++
	}
	return nil
}

// tail returns the index of the oldest keystroke. Caller must hold
// q.mu and ensure q.count > 0.
func (q *Queue) tail() int {
	return (q.head - q.count + q.capacity) % q.capacity
}

// Peek returns the oldest keystroke without removing it.
func (q *Queue) Peek() (keyboard.Key, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return keyboard.Key{}, false
	}
	return q.keys[q.tail()], true
}

// Pop removes and returns the oldest keystroke.
func (q *Queue) Pop() (keyboard.Key, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return keyboard.Key{}, false
	}
	t := q.tail()
	k := q.keys[t]
	q.keys[t] = keyboard.Key{}
	q.count--
	return k, true
}

// Len returns the number of queued keystrokes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Clear drops every queued keystroke.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.keys {
		q.keys[i] = keyboard.Key{}
	}
	q.head = 0
	q.count = 0
}
