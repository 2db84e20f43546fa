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

// Package delivery drains the message queue into the Discord webhook,
// one request at a time, honouring the server's rate limit hints.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/pjscruggs/slogdiscord/internal/metrics"
	"github.com/pjscruggs/slogdiscord/internal/queue"
	"github.com/pjscruggs/slogdiscord/internal/webhook"
)

const (
	// WarningPrefix starts the synthetic message queued after an unexpected response.
	WarningPrefix = "⚠ Unexpected response while posting to discord ⚠"

	// DefaultRetryInterval is how long the worker waits when no webhook URI is set.
	DefaultRetryInterval = time.Second
	// DefaultRateLimitWait applies when the bucket is exhausted and no reset was sent.
	DefaultRateLimitWait = 5 * time.Second

	spanName = "discord.webhook.deliver"
)

// Message is one queued item. Warning marks the synthetic report queued after
// an unexpected response; a failing warning is not reported again.
type Message struct {
	Content string
	Warning bool
}

// Target is the per-request snapshot of the mutable configuration.
type Target struct {
	URL       string
	Username  string
	AvatarURL string
}

// Poster performs one webhook request.
type Poster interface {
	Post(ctx context.Context, webhookURL string, payload webhook.Payload) (webhook.Result, error)
}

// Reporter is the diagnostic channel of the owning handler.
type Reporter interface {
	// Printf writes a line to the error writer only.
	Printf(format string, args ...any)
	// Error reports through the diagnostic logger and the error writer.
	Error(msg string, err error)
}

// Config wires a Worker.
type Config struct {
	Queue    *queue.Queue[Message]
	Poster   Poster
	Target   func() Target
	Reporter Reporter
	Metrics  *metrics.Collectors
	Tracer   trace.Tracer
	// Limiter, when set, paces requests ahead of the server's hints.
	Limiter *rate.Limiter

	RetryInterval time.Duration
	RateLimitWait time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Worker owns the serialization of outbound requests. Run must be called
// from a single goroutine.
type Worker struct {
	queue         *queue.Queue[Message]
	poster        Poster
	target        func() Target
	reporter      Reporter
	metrics       *metrics.Collectors
	tracer        trace.Tracer
	limiter       *rate.Limiter
	retryInterval time.Duration
	rateLimitWait time.Duration
	now           func() time.Time
	sleep         func(context.Context, time.Duration) error
}

// New builds a Worker, filling unset durations with the defaults.
func New(cfg Config) *Worker {
	w := &Worker{
		queue:         cfg.Queue,
		poster:        cfg.Poster,
		target:        cfg.Target,
		reporter:      cfg.Reporter,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
		limiter:       cfg.Limiter,
		retryInterval: cfg.RetryInterval,
		rateLimitWait: cfg.RateLimitWait,
		now:           cfg.now,
		sleep:         cfg.sleep,
	}
	if w.retryInterval <= 0 {
		w.retryInterval = DefaultRetryInterval
	}
	if w.rateLimitWait <= 0 {
		w.rateLimitWait = DefaultRateLimitWait
	}
	if w.tracer == nil {
		w.tracer = noop.NewTracerProvider().Tracer("")
	}
	if w.reporter == nil {
		w.reporter = WriterReporter(io.Discard)
	}
	if w.target == nil {
		w.target = func() Target { return Target{} }
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.sleep == nil {
		w.sleep = sleepContext
	}
	return w
}

// Run delivers queued messages until ctx is cancelled, then returns the
// context error. Messages still queued at that point are abandoned.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.queue.Pop(ctx)
		if err != nil {
			return err
		}
		wait, err := w.deliver(ctx, msg)
		w.queue.Done()
		if err != nil {
			return err
		}
		if wait > 0 {
			if err := w.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
}

// deliver handles one message and returns the pause owed before the next
// request. It only returns an error when ctx is done.
func (w *Worker) deliver(ctx context.Context, msg Message) (time.Duration, error) {
	target := w.target()
	if strings.TrimSpace(target.URL) == "" {
		w.queue.PushFront(msg)
		w.metrics.IncStalls()
		return w.retryInterval, nil
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			w.reporter.Printf("slogdiscord: request limiter: %v", err)
		}
	}

	res, err := w.post(ctx, target, msg.Content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		w.reporter.Printf("slogdiscord: post to discord: %v", err)
		w.metrics.IncDropped(metrics.ReasonTransport)
		return w.rateLimitWait, nil
	}

	switch res.Outcome {
	case webhook.OutcomeDelivered:
	case webhook.OutcomeRateLimited:
		w.queue.PushFront(msg)
	case webhook.OutcomeFailed:
		detail := res.Detail()
		w.reporter.Error("Error posting log to Discord: "+detail, nil)
		if !msg.Warning {
			w.queue.PushFront(Message{
				Content: webhook.Shape(WarningPrefix + "\n" + detail),
				Warning: true,
			})
		}
	}

	return res.RateLimit.Delay(w.now(), w.rateLimitWait), nil
}

// post wraps a single request in a span and records its outcome.
func (w *Worker) post(ctx context.Context, target Target, msg string) (webhook.Result, error) {
	ctx, span := w.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	res, err := w.poster.Post(ctx, target.URL, webhook.NewPayload(msg, target.Username, target.AvatarURL))
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		if !errors.Is(err, context.Canceled) {
			w.metrics.ObserveDelivery(metrics.ReasonTransport, elapsed)
		}
		return res, err
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", res.StatusCode),
		attribute.String("discord.delivery.outcome", res.Outcome.String()),
		attribute.Int("discord.ratelimit.remaining", res.RateLimit.Remaining),
	)
	if res.Outcome == webhook.OutcomeFailed {
		span.SetStatus(codes.Error, fmt.Sprintf("unexpected status %d", res.StatusCode))
	}
	w.metrics.ObserveDelivery(res.Outcome.String(), elapsed)
	return res, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type writerReporter struct {
	w io.Writer
}

// WriterReporter returns a Reporter that sends everything to w.
func WriterReporter(w io.Writer) Reporter {
	return writerReporter{w: w}
}

func (r writerReporter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}

func (r writerReporter) Error(msg string, err error) {
	if err != nil {
		r.Printf("slogdiscord: %s: %v", msg, err)
		return
	}
	r.Printf("slogdiscord: %s", msg)
}
