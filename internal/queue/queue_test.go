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

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// drain pops n messages with a short deadline.
func drain(t *testing.T, q *Queue[string], n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out := make([]string, 0, n)
	for range n {
		msg, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop() returned %v after %d messages, want nil", err, len(out))
		}
		out = append(out, msg)
	}
	return out
}

// TestPushBackIsFIFO verifies tail appends come out in order.
func TestPushBackIsFIFO(t *testing.T) {
	t.Parallel()

	q := New[string](0, DropNone)
	for _, msg := range []string{"a", "b", "c"} {
		if q.PushBack(msg) {
			t.Fatalf("PushBack(%q) dropped on an unbounded queue", msg)
		}
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, drain(t, q, 3)); diff != "" {
		t.Fatalf("pop order mismatch (-want +got):\n%s", diff)
	}
}

// TestPushFrontIsLIFO verifies head reinsertions overtake queued messages.
func TestPushFrontIsLIFO(t *testing.T) {
	t.Parallel()

	q := New[string](0, DropNone)
	q.PushBack("queued")
	q.PushFront("retry-1")
	q.PushFront("retry-2")

	if diff := cmp.Diff([]string{"retry-2", "retry-1", "queued"}, drain(t, q, 3)); diff != "" {
		t.Fatalf("pop order mismatch (-want +got):\n%s", diff)
	}
}

// TestPopBlocksUntilPush verifies a waiting consumer is woken by a producer.
func TestPopBlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := New[string](0, DropNone)
	got := make(chan string, 1)
	go func() {
		msg, err := q.Pop(context.Background())
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- msg
	}()

	select {
	case msg := <-got:
		t.Fatalf("Pop returned %q before any push", msg)
	case <-time.After(50 * time.Millisecond):
	}

	q.PushBack("late")
	select {
	case msg := <-got:
		if msg != "late" {
			t.Fatalf("Pop() = %q, want %q", msg, "late")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after PushBack")
	}
}

// TestPopHonoursCancellation verifies Pop returns the context error.
func TestPopHonoursCancellation(t *testing.T) {
	t.Parallel()

	q := New[string](0, DropNone)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Pop() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop ignored cancellation")
	}
}

// TestDropPolicies covers capped queues.
func TestDropPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		policy      DropPolicy
		wantDropped []bool
		want        []string
	}{
		{
			name:        "drop newest",
			policy:      DropNewest,
			wantDropped: []bool{false, false, true},
			want:        []string{"1", "2"},
		},
		{
			name:        "drop oldest",
			policy:      DropOldest,
			wantDropped: []bool{false, false, true},
			want:        []string{"2", "3"},
		},
		{
			name:        "none ignores limit",
			policy:      DropNone,
			wantDropped: []bool{false, false, false},
			want:        []string{"1", "2", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := New[string](2, tt.policy)
			var dropped []bool
			for _, msg := range []string{"1", "2", "3"} {
				dropped = append(dropped, q.PushBack(msg))
			}
			if diff := cmp.Diff(tt.wantDropped, dropped); diff != "" {
				t.Fatalf("dropped mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, drain(t, q, len(tt.want))); diff != "" {
				t.Fatalf("contents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestPushFrontBypassesLimit verifies retries are kept even when full.
func TestPushFrontBypassesLimit(t *testing.T) {
	t.Parallel()

	q := New[string](1, DropNewest)
	q.PushBack("queued")
	q.PushFront("retry")

	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

// TestConcurrentProducersKeepPerProducerOrder verifies FIFO per producer.
func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 4, 200
	q := New[string](0, DropNone)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.PushBack(fmt.Sprintf("%d:%d", p, i))
			}
		}()
	}
	wg.Wait()

	next := make([]int, producers)
	for _, msg := range drain(t, q, producers*perProducer) {
		var p, i int
		if _, err := fmt.Sscanf(msg, "%d:%d", &p, &i); err != nil {
			t.Fatalf("unexpected message %q: %v", msg, err)
		}
		if i != next[p] {
			t.Fatalf("producer %d delivered %d, want %d", p, i, next[p])
		}
		next[p]++
	}
}

// TestPendingCountsInFlight verifies a popped message stays pending until Done.
func TestPendingCountsInFlight(t *testing.T) {
	t.Parallel()

	q := New[string](0, DropNone)
	q.PushBack("a")
	if got := q.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	drain(t, q, 1)
	if got, l := q.Pending(), q.Len(); got != 1 || l != 0 {
		t.Fatalf("after Pop: Pending() = %d, Len() = %d; want 1, 0", got, l)
	}

	q.Done()
	q.Done()
	if got := q.Pending(); got != 0 {
		t.Fatalf("after Done: Pending() = %d, want 0", got)
	}
}
