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

package slogdiscord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acarl005/stripansi"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/pjscruggs/slogdiscord/internal/delivery"
	"github.com/pjscruggs/slogdiscord/internal/metrics"
	"github.com/pjscruggs/slogdiscord/internal/queue"
	"github.com/pjscruggs/slogdiscord/internal/webhook"
)

const (
	instrumentationName = "github.com/pjscruggs/slogdiscord"

	noWebhookWarning  = "No webhookUri set, can't send logs to Discord."
	flushPollInterval = 10 * time.Millisecond
)

// Handler is a [slog.Handler] that posts records to a Discord webhook.
//
// Handle renders and shapes the record on the caller's goroutine, then
// queues it; a single background worker performs the HTTP requests, so
// logging never waits on the network. Handlers derived with WithAttrs and
// WithGroup share the queue, worker and settings of their parent.
type Handler struct {
	state *handlerState
	goas  []groupOrAttrs
}

// groupOrAttrs records one WithGroup or WithAttrs call, in order.
type groupOrAttrs struct {
	group string
	attrs []slog.Attr
}

type handlerState struct {
	settings     settings
	level        slog.Leveler
	stripANSI    bool
	dropNewest   bool
	flushTimeout time.Duration

	queue   *queue.Queue[delivery.Message]
	worker  *delivery.Worker
	diag    *diagnostics
	metrics *metrics.Collectors

	warnOnce sync.Once
	closed   atomic.Bool

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewHandler builds a Discord [Handler]. It reads the SLOGDISCORD_*
// environment variables, applies opts on top, and starts the delivery
// worker unless [WithManualStart] is given.
//
// Example:
//
//	h, err := slogdiscord.NewHandler(
//		slogdiscord.WithWebhookURI(os.Getenv("DISCORD_WEBHOOK_URL")),
//		slogdiscord.WithLevel(slog.LevelError),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close()
//	logger := slog.New(h)
//	logger.Error("payment failed", "order", 42)
func NewHandler(opts ...Option) (*Handler, error) {
	builder := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	applyOptions(&cfg, builder)

	cfg.WebhookURI = strings.TrimSpace(cfg.WebhookURI)
	if err := validateWebhookURI(cfg.WebhookURI); err != nil {
		return nil, err
	}
	if cfg.QueueLimit < 0 {
		return nil, fmt.Errorf("%w: queue limit %d is negative", ErrInvalidConfig, cfg.QueueLimit)
	}

	level := builder.level
	if level == nil {
		level = cfg.Level
	}

	errw := builder.errorWriter
	if !builder.errorWriterSet {
		errw = os.Stderr
	}
	diag := newDiagnostics(builder.internalLogger, errw)

	q := queue.New[delivery.Message](cfg.QueueLimit, cfg.DropMode.policy())
	collectors := metrics.New(func() float64 { return float64(q.Len()) })
	if err := collectors.Register(builder.registerer); err != nil {
		return nil, fmt.Errorf("slogdiscord: %w", err)
	}

	tp := builder.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	var limiter *rate.Limiter
	if builder.requestRate != nil {
		burst := builder.requestBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(*builder.requestRate, burst)
	}

	state := &handlerState{
		level:        level,
		stripANSI:    cfg.StripANSI,
		dropNewest:   cfg.QueueLimit > 0 && cfg.DropMode == DropModeDropNewest,
		flushTimeout: builder.flushTimeout,
		queue:        q,
		diag:         diag,
		metrics:      collectors,
	}
	store(&state.settings.webhookURI, cfg.WebhookURI)
	store(&state.settings.username, cfg.Username)
	store(&state.settings.avatarURL, cfg.AvatarURL)
	layout := builder.layout
	if layout == nil {
		layout = defaultLayout
	}
	state.settings.layout.Store(&layoutBox{Layout: layout})

	state.worker = delivery.New(delivery.Config{
		Queue:         q,
		Poster:        webhook.NewClient(instrumentedClient(builder.httpClient, tp), UserAgent),
		Target:        state.settings.target,
		Reporter:      diag,
		Metrics:       collectors,
		Tracer:        tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(Version)),
		Limiter:       limiter,
		RetryInterval: builder.retryInterval,
		RateLimitWait: builder.rateLimitWait,
	})

	h := &Handler{state: state}
	if !builder.manualStart {
		h.Start()
	}
	return h, nil
}

// instrumentedClient copies base (or a default client) with an otelhttp
// transport. Trace headers are not propagated to Discord.
func instrumentedClient(base *http.Client, tp trace.TracerProvider) *http.Client {
	var client http.Client
	if base != nil {
		client = *base
	} else {
		client.Timeout = webhook.DefaultTimeout
	}
	client.Transport = otelhttp.NewTransport(client.Transport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()),
	)
	return &client
}

// Start launches the delivery worker. It is called by NewHandler unless
// WithManualStart was given, and does nothing when the worker already runs
// or the handler is closed.
func (h *Handler) Start() {
	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed.Load() {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.diag.Printf("slogdiscord: delivery worker stopped: %v", err)
		}
	}()
}

// Enabled reports whether level meets the handler's minimum level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.state.level.Level()
}

// Handle renders rec, shapes it to Discord's limits and queues it for
// delivery. It never returns an error: failures are reported through the
// internal logger and the error writer so logging cannot break the caller.
func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	s := h.state
	if s.closed.Load() {
		s.metrics.IncDropped(metrics.ReasonClosed)
		return nil
	}

	if load(&s.settings.webhookURI) == "" {
		s.warnOnce.Do(func() {
			s.diag.Warn(noWebhookWarning)
		})
	}

	text, err := h.render(ctx, rec)
	if err != nil {
		s.diag.Error(fmt.Sprintf("Error rendering log for Discord: %q", text), err)
		s.metrics.IncDropped(metrics.ReasonRenderError)
		return nil
	}
	if s.stripANSI {
		text = stripansi.Strip(text)
	}

	if s.queue.PushBack(delivery.Message{Content: Shape(text)}) {
		s.metrics.IncDropped(metrics.ReasonQueueFull)
		if s.dropNewest {
			return nil
		}
	}
	s.metrics.IncEnqueued()
	return nil
}

// render runs the current layout, converting a panic into an error.
func (h *Handler) render(ctx context.Context, rec slog.Record) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("layout panicked: %v", r)
		}
	}()
	return h.state.settings.currentLayout().Format(ctx, h.resolve(rec))
}

// resolve folds the attributes and groups collected by WithAttrs and
// WithGroup into a copy of rec, nesting later attributes inside earlier
// groups. Empty groups are elided as slog does.
func (h *Handler) resolve(rec slog.Record) slog.Record {
	if len(h.goas) == 0 {
		return rec
	}

	attrs := make([]slog.Attr, 0, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for i := len(h.goas) - 1; i >= 0; i-- {
		goa := h.goas[i]
		if goa.group == "" {
			attrs = append(slices.Clone(goa.attrs), attrs...)
			continue
		}
		if len(attrs) == 0 {
			continue
		}
		attrs = []slog.Attr{{Key: goa.group, Value: slog.GroupValue(attrs...)}}
	}

	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	out.AddAttrs(attrs...)
	return out
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(groupOrAttrs{attrs: slices.Clone(attrs)})
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(groupOrAttrs{group: name})
}

func (h *Handler) with(goa groupOrAttrs) *Handler {
	goas := make([]groupOrAttrs, 0, len(h.goas)+1)
	goas = append(goas, h.goas...)
	goas = append(goas, goa)
	return &Handler{state: h.state, goas: goas}
}

// Flush blocks until every message accepted so far has been handled by the
// worker, or ctx is done. It never returns while delivery is stalled on a
// missing webhook URI.
func (h *Handler) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for {
		if h.state.queue.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops accepting records and stops the worker. With
// WithFlushTimeout it first waits for the queue to drain and returns
// ErrFlushTimeout if that takes too long; otherwise queued messages are
// discarded. Close is safe to call multiple times.
func (h *Handler) Close() error {
	s := h.state
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		started, cancel, done := s.started, s.cancel, s.done
		s.mu.Unlock()
		if !started {
			return
		}

		if s.flushTimeout > 0 {
			ctx, stop := context.WithTimeout(context.Background(), s.flushTimeout)
			if err := h.Flush(ctx); err != nil {
				s.closeErr = ErrFlushTimeout
			}
			stop()
		}

		cancel()
		<-done
	})
	return s.closeErr
}

// Pending reports how many messages are queued or being delivered.
func (h *Handler) Pending() int {
	return h.state.queue.Pending()
}

var _ slog.Handler = (*Handler)(nil)
