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

package slogdiscord_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pjscruggs/slogdiscord"
	"github.com/pjscruggs/slogdiscord/discordtest"
)

// syncBuffer is a bytes.Buffer that tolerates concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestHandler builds a handler posting to srv with a message-only layout.
// The handler is closed when the test finishes.
func newTestHandler(t *testing.T, srv *discordtest.Server, opts ...slogdiscord.Option) *slogdiscord.Handler {
	t.Helper()
	base := []slogdiscord.Option{
		slogdiscord.WithLayout(slogdiscord.NewMessageLayout()),
		slogdiscord.WithErrorWriter(nil),
		slogdiscord.WithRetryInterval(10 * time.Millisecond),
		slogdiscord.WithDefaultRateLimitWait(10 * time.Millisecond),
	}
	if srv != nil {
		base = append(base, slogdiscord.WithWebhookURI(srv.WebhookURL()))
	}
	h, err := slogdiscord.NewHandler(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewHandler() returned %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// flush waits for the handler to go idle.
func flush(t *testing.T, h *slogdiscord.Handler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Flush(ctx); err != nil {
		t.Fatalf("Flush() returned %v with %d pending", err, h.Pending())
	}
}

// metricValue sums every sample of name whose labels include want.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

// captureLogger returns a text logger writing to buf.
func captureLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func countLines(s, substr string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
