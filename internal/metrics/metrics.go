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

// Package metrics holds the Prometheus collectors describing the delivery
// pipeline. Collectors always count; they are only exported once registered.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	ReasonQueueFull   = "queue_full"
	ReasonClosed      = "closed"
	ReasonRenderError = "render_error"
	ReasonTransport   = "transport_error"
)

// Collectors groups the pipeline metrics of one handler. A nil *Collectors
// is valid and records nothing.
type Collectors struct {
	Enqueued     prometheus.Counter
	Dropped      *prometheus.CounterVec
	Deliveries   *prometheus.CounterVec
	Stalls       prometheus.Counter
	PostDuration prometheus.Histogram
	QueueDepth   prometheus.GaugeFunc
}

// New builds the collectors. depth is sampled on every scrape.
func New(depth func() float64) *Collectors {
	if depth == nil {
		depth = func() float64 { return 0 }
	}
	return &Collectors{
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slogdiscord_enqueued_total",
			Help: "Total number of shaped messages accepted into the delivery queue.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slogdiscord_dropped_total",
			Help: "Total number of log messages dropped by reason.",
		}, []string{"reason"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slogdiscord_deliveries_total",
			Help: "Total number of webhook requests by outcome.",
		}, []string{"outcome"}),
		Stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slogdiscord_stalls_total",
			Help: "Total number of delivery attempts postponed because no webhook URI was set.",
		}),
		PostDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slogdiscord_post_duration_seconds",
			Help:    "Latency of webhook requests.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "slogdiscord_queue_depth",
			Help: "Number of messages waiting for delivery.",
		}, depth),
	}
}

// Register adds every collector to reg. Collectors already registered by an
// identical handler are tolerated.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	if c == nil || reg == nil {
		return nil
	}
	for _, col := range []prometheus.Collector{c.Enqueued, c.Dropped, c.Deliveries, c.Stalls, c.PostDuration, c.QueueDepth} {
		if err := reg.Register(col); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

// IncEnqueued records an accepted message.
func (c *Collectors) IncEnqueued() {
	if c == nil {
		return
	}
	c.Enqueued.Inc()
}

// IncDropped records a dropped message.
func (c *Collectors) IncDropped(reason string) {
	if c == nil {
		return
	}
	c.Dropped.WithLabelValues(reason).Inc()
}

// ObserveDelivery records one request outcome and its latency.
func (c *Collectors) ObserveDelivery(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Deliveries.WithLabelValues(outcome).Inc()
	c.PostDuration.Observe(elapsed.Seconds())
}

// IncStalls records a postponed delivery.
func (c *Collectors) IncStalls() {
	if c == nil {
		return
	}
	c.Stalls.Inc()
}
