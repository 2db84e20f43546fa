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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pjscruggs/slogdiscord/internal/webhook"
)

// Layout renders a record to the text posted to Discord. Implementations
// must be safe for concurrent use. On error the returned text, if any, is
// included in the diagnostic report.
type Layout interface {
	Format(ctx context.Context, rec slog.Record) (string, error)
}

// LayoutFunc adapts a function to [Layout].
type LayoutFunc func(ctx context.Context, rec slog.Record) (string, error)

// Format calls f.
func (f LayoutFunc) Format(ctx context.Context, rec slog.Record) (string, error) {
	return f(ctx, rec)
}

// LayoutOptions configures the built-in layouts.
type LayoutOptions struct {
	// TimeFormat formats the record time with time.Time.Format. Empty omits
	// the time, which Discord already shows next to every message.
	TimeFormat string
	// IncludeTrace adds trace_id, span_id and trace_sampled when the logging
	// context carries an OpenTelemetry span.
	IncludeTrace bool
	// AddSource adds the caller's file and line.
	AddSource bool
	// ReplaceAttr is applied to every non-builtin attribute, as in
	// slog.HandlerOptions.
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr
}

var defaultLayout Layout = NewMarkdownLayout(nil)

// DefaultLayout returns the layout used when none is configured.
func DefaultLayout() Layout { return defaultLayout }

// NewMessageLayout posts the record message verbatim and ignores attributes.
func NewMessageLayout() Layout {
	return LayoutFunc(func(_ context.Context, rec slog.Record) (string, error) {
		return rec.Message, nil
	})
}

type textLayout struct {
	opts LayoutOptions
}

// NewTextLayout renders each record as a single logfmt line produced by
// slog.TextHandler.
func NewTextLayout(opts *LayoutOptions) Layout {
	l := &textLayout{}
	if opts != nil {
		l.opts = *opts
	}
	return l
}

// Format implements Layout.
func (l *textLayout) Format(ctx context.Context, rec slog.Record) (string, error) {
	if l.opts.IncludeTrace {
		if attrs, ok := TraceAttributes(ctx); ok {
			rec = rec.Clone()
			rec.AddAttrs(attrs...)
		}
	}

	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		AddSource:   l.opts.AddSource,
		ReplaceAttr: l.replaceAttr,
	})
	if err := h.Handle(ctx, rec); err != nil {
		return buf.String(), fmt.Errorf("text layout: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (l *textLayout) replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		if l.opts.TimeFormat == "" {
			return slog.Attr{}
		}
		return slog.String(slog.TimeKey, a.Value.Time().Format(l.opts.TimeFormat))
	}
	if len(groups) == 0 && (a.Key == slog.LevelKey || a.Key == slog.MessageKey || a.Key == slog.SourceKey) {
		return a
	}
	if l.opts.ReplaceAttr != nil {
		return l.opts.ReplaceAttr(groups, a)
	}
	return a
}

type markdownLayout struct {
	opts LayoutOptions
}

// NewMarkdownLayout renders a bold level and the message on the first line,
// followed by the attributes as logfmt, one per line, inside a code block:
//
//	**ERROR** payment failed
//	```
//	order=42
//	error="card declined"
//	```
//
// Because the text ends in a fence, truncation of a long record keeps the
// code block closed.
func NewMarkdownLayout(opts *LayoutOptions) Layout {
	l := &markdownLayout{}
	if opts != nil {
		l.opts = *opts
	}
	return l
}

// Format implements Layout.
func (l *markdownLayout) Format(ctx context.Context, rec slog.Record) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", rec.Level.String())
	if l.opts.TimeFormat != "" && !rec.Time.IsZero() {
		fmt.Fprintf(&b, " `%s`", rec.Time.Format(l.opts.TimeFormat))
	}
	if rec.Message != "" {
		b.WriteString(" ")
		b.WriteString(rec.Message)
	}

	attrs := make([]slog.Attr, 0, rec.NumAttrs()+4)
	rec.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	if l.opts.IncludeTrace {
		if traceAttrs, ok := TraceAttributes(ctx); ok {
			attrs = append(attrs, traceAttrs...)
		}
	}
	if l.opts.AddSource {
		if src, ok := sourceAttr(rec.PC); ok {
			attrs = append(attrs, src)
		}
	}

	var lines []string
	for _, a := range attrs {
		line, err := l.logfmt(ctx, a)
		if err != nil {
			return b.String(), err
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return b.String(), nil
	}

	b.WriteString("\n")
	b.WriteString(webhook.CodeFence)
	b.WriteString("\n")
	b.WriteString(escapeFences(strings.Join(lines, "\n")))
	b.WriteString("\n")
	b.WriteString(webhook.CodeFence)
	return b.String(), nil
}

// logfmt renders a single attribute with slog.TextHandler, dropping the
// builtin keys so only key=value remains.
func (l *markdownLayout) logfmt(ctx context.Context, a slog.Attr) (string, error) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 {
				switch attr.Key {
				case slog.TimeKey, slog.LevelKey, slog.MessageKey:
					return slog.Attr{}
				}
			}
			if l.opts.ReplaceAttr != nil {
				return l.opts.ReplaceAttr(groups, attr)
			}
			return attr
		},
	})
	rec := slog.NewRecord(time.Time{}, slog.LevelInfo, "", 0)
	rec.AddAttrs(a)
	if err := h.Handle(ctx, rec); err != nil {
		return "", fmt.Errorf("markdown layout: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

type codeBlockLayout struct {
	inner    Layout
	language string
}

// CodeBlock wraps the output of inner in a fenced code block tagged with
// language, which may be empty. Fences inside the text are broken up so
// they cannot close the block early.
func CodeBlock(inner Layout, language string) Layout {
	if inner == nil {
		inner = NewTextLayout(nil)
	}
	return &codeBlockLayout{inner: inner, language: language}
}

// Format implements Layout.
func (l *codeBlockLayout) Format(ctx context.Context, rec slog.Record) (string, error) {
	text, err := l.inner.Format(ctx, rec)
	if err != nil {
		return text, err
	}
	return webhook.CodeFence + l.language + "\n" + escapeFences(text) + "\n" + webhook.CodeFence, nil
}

// escapeFences inserts zero-width spaces into triple backticks.
func escapeFences(s string) string {
	return strings.ReplaceAll(s, webhook.CodeFence, "`\u200b`\u200b`")
}

// sourceAttr resolves pc to a "dir/file.go:line" attribute.
func sourceAttr(pc uintptr) (slog.Attr, bool) {
	if pc == 0 {
		return slog.Attr{}, false
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return slog.Attr{}, false
	}
	file := filepath.Join(filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File))
	return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.ToSlash(file), frame.Line)), true
}
