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
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/pjscruggs/slogdiscord/internal/queue"
)

// DropMode controls what happens when a capped queue is full.
type DropMode int

const (
	// DropModeNone keeps the queue unbounded. This is the default.
	DropModeNone DropMode = iota
	// DropModeDropNewest drops the incoming record when the queue is full.
	DropModeDropNewest
	// DropModeDropOldest drops the oldest queued record when the queue is full.
	DropModeDropOldest
)

// String returns the environment spelling of m.
func (m DropMode) String() string {
	switch m {
	case DropModeDropNewest:
		return "drop_newest"
	case DropModeDropOldest:
		return "drop_oldest"
	default:
		return "none"
	}
}

func (m DropMode) policy() queue.DropPolicy {
	switch m {
	case DropModeDropNewest:
		return queue.DropNewest
	case DropModeDropOldest:
		return queue.DropOldest
	default:
		return queue.DropNone
	}
}

// Option mutates Handler construction behaviour when supplied to [NewHandler].
//
// Options are applied in order after the environment has been read, so an
// explicit option always wins over a SLOGDISCORD_* variable.
type Option func(*options)

type options struct {
	webhookURI     *string
	username       *string
	avatarURL      *string
	layout         Layout
	level          slog.Leveler
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	internalLogger *slog.Logger
	errorWriter    io.Writer
	errorWriterSet bool
	queueLimit     *int
	dropMode       *DropMode
	requestRate    *rate.Limit
	requestBurst   int
	registerer     prometheus.Registerer
	stripANSI      *bool
	flushTimeout   time.Duration
	manualStart    bool
	retryInterval  time.Duration
	rateLimitWait  time.Duration
}

// WithWebhookURI sets the Discord webhook to post to. This overrides
// SLOGDISCORD_WEBHOOK_URL and DISCORD_WEBHOOK_URL. An empty URI is allowed
// and stalls delivery until one is set with [Handler.SetWebhookURI].
func WithWebhookURI(uri string) Option {
	return func(o *options) {
		o.webhookURI = &uri
	}
}

// WithLayout sets the formatter that renders records to message text.
// Defaults to [NewMarkdownLayout] with no options.
func WithLayout(layout Layout) Option {
	return func(o *options) {
		o.layout = layout
	}
}

// WithUsername overrides the webhook's display name. An empty string keeps
// the webhook default.
func WithUsername(name string) Option {
	return func(o *options) {
		o.username = &name
	}
}

// WithAvatarURL overrides the webhook's avatar. An empty string keeps the
// webhook default.
func WithAvatarURL(url string) Option {
	return func(o *options) {
		o.avatarURL = &url
	}
}

// WithLevel sets the minimum level forwarded to Discord. Passing a
// *slog.LevelVar allows the level to be changed at runtime. This overrides
// SLOGDISCORD_LEVEL. Defaults to slog.LevelInfo.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithHTTPClient supplies the client used for webhook requests. Its
// transport is wrapped with OpenTelemetry instrumentation. Defaults to a
// client with a 10 second timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTracerProvider sets the provider used for delivery spans and the
// instrumented transport. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithInternalLogger sets the logger that receives the handler's own
// warnings and errors. It must not write to this handler. Defaults to a
// logger that discards everything.
func WithInternalLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.internalLogger = logger
	}
}

// WithErrorWriter directs delivery errors to w. Use nil to silence them.
// Defaults to os.Stderr.
func WithErrorWriter(w io.Writer) Option {
	return func(o *options) {
		o.errorWriter = w
		o.errorWriterSet = true
	}
}

// WithQueueLimit caps the number of queued messages and selects what to drop
// once the cap is reached. A limit of zero, or DropModeNone, keeps the
// queue unbounded. Retries are never dropped.
func WithQueueLimit(limit int, mode DropMode) Option {
	return func(o *options) {
		o.queueLimit = &limit
		o.dropMode = &mode
	}
}

// WithRequestRate paces requests ahead of Discord's own rate limit hints,
// for example rate.Every(2*time.Second) with burst 5 to stay within the
// 30 requests per minute webhook quota. Disabled by default.
func WithRequestRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		l := limit
		o.requestRate = &l
		o.requestBurst = burst
	}
}

// WithMetricsRegisterer registers the handler's Prometheus collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithANSIStripping toggles removal of terminal escape sequences from
// rendered text. This overrides SLOGDISCORD_STRIP_ANSI. Enabled by default.
func WithANSIStripping(enabled bool) Option {
	return func(o *options) {
		o.stripANSI = &enabled
	}
}

// WithFlushTimeout makes [Handler.Close] wait up to timeout for queued
// messages to be delivered. By default Close abandons the queue.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.flushTimeout = timeout
	}
}

// WithManualStart defers starting the delivery worker until
// [Handler.Start] is called. Records handled before that are queued.
func WithManualStart() Option {
	return func(o *options) {
		o.manualStart = true
	}
}

// WithRetryInterval sets how often the worker checks for a webhook URI
// while none is configured. Defaults to one second.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retryInterval = d
	}
}

// WithDefaultRateLimitWait sets the pause after a response that exhausted
// the rate limit bucket without announcing a reset time. Defaults to five
// seconds.
func WithDefaultRateLimitWait(d time.Duration) Option {
	return func(o *options) {
		o.rateLimitWait = d
	}
}

// applyOptions folds explicit options over the environment-derived config.
func applyOptions(cfg *handlerConfig, o *options) {
	if o.webhookURI != nil {
		cfg.WebhookURI = *o.webhookURI
	}
	if o.username != nil {
		cfg.Username = *o.username
	}
	if o.avatarURL != nil {
		cfg.AvatarURL = *o.avatarURL
	}
	if o.queueLimit != nil {
		cfg.QueueLimit = *o.queueLimit
	}
	if o.dropMode != nil {
		cfg.DropMode = *o.dropMode
	}
	if o.stripANSI != nil {
		cfg.StripANSI = *o.stripANSI
	}
}
