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
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// diagnostics is the handler's own error channel: an internal logger for
// structured reports and an error writer for plain lines. It implements
// delivery.Reporter.
type diagnostics struct {
	logger *slog.Logger

	mu   sync.Mutex
	errw io.Writer
}

func newDiagnostics(logger *slog.Logger, errw io.Writer) *diagnostics {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &diagnostics{logger: logger, errw: errw}
}

// Printf writes one line to the error writer.
func (d *diagnostics) Printf(format string, args ...any) {
	if d.errw == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintf(d.errw, format+"\n", args...)
}

// Warn reports a misconfiguration through the internal logger only.
func (d *diagnostics) Warn(msg string) {
	d.logger.Warn(msg)
}

// Error reports through both the internal logger and the error writer.
func (d *diagnostics) Error(msg string, err error) {
	if err != nil {
		d.logger.Error(msg, slog.Any("error", err))
		d.Printf("slogdiscord: %s: %v", msg, err)
		return
	}
	d.logger.Error(msg)
	d.Printf("slogdiscord: %s", msg)
}
