// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue implements the unbounded (or optionally capped) double-ended
// message queue that sits between the handler and the delivery worker.
package queue

import (
	"container/list"
	"context"
	"sync"
)

// DropPolicy selects what PushBack does when a capped queue is full.
type DropPolicy int

const (
	// DropNone never drops; the queue grows without bound.
	DropNone DropPolicy = iota
	// DropNewest rejects the incoming message.
	DropNewest
	// DropOldest evicts the message at the head to make room.
	DropOldest
)

// Queue is a thread-safe deque of messages. Producers append at the
// tail, retries are reinserted at the head and a single consumer blocks in
// Pop until something is available.
type Queue[T any] struct {
	mu       sync.Mutex
	items    *list.List
	inflight int
	limit    int
	policy   DropPolicy
	ready    chan struct{}
}

// New returns an empty queue. A limit of zero or less, or DropNone, means
// the queue is unbounded.
func New[T any](limit int, policy DropPolicy) *Queue[T] {
	if limit <= 0 || policy == DropNone {
		limit = 0
		policy = DropNone
	}
	return &Queue[T]{
		items:  list.New(),
		limit:  limit,
		policy: policy,
		ready:  make(chan struct{}, 1),
	}
}

// PushBack appends msg at the tail. It never blocks. It reports whether a
// message was dropped to respect the limit: the incoming one under
// DropNewest, the head under DropOldest.
func (q *Queue[T]) PushBack(msg T) (dropped bool) {
	q.mu.Lock()
	if q.limit > 0 && q.items.Len() >= q.limit {
		switch q.policy {
		case DropNewest:
			q.mu.Unlock()
			return true
		case DropOldest:
			q.items.Remove(q.items.Front())
			dropped = true
		}
	}
	q.items.PushBack(msg)
	q.mu.Unlock()
	q.signal()
	return dropped
}

// PushFront reinserts msg at the head. Retries bypass the limit so a message
// that was already accepted is never lost by its own reinsertion.
func (q *Queue[T]) PushFront(msg T) {
	q.mu.Lock()
	q.items.PushFront(msg)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the head, blocking until one is available or ctx
// is done, in which case ctx.Err() is returned. Each successful Pop counts
// as in flight until the consumer calls Done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if front := q.items.Front(); front != nil {
			q.items.Remove(front)
			q.inflight++
			more := q.items.Len() > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return front.Value.(T), nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len reports the number of queued messages.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Done marks a popped message as handled.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	if q.inflight > 0 {
		q.inflight--
	}
	q.mu.Unlock()
}

// Pending reports queued plus in-flight messages. It is zero only once
// everything accepted so far has been handled.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len() + q.inflight
}

// signal wakes a waiting consumer without blocking the producer.
func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
