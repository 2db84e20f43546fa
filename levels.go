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
	"log/slog"
	"strconv"
	"strings"
)

// ParseLevel converts a level name such as "debug", "WARN", "warning",
// "error+2" or an integer into a slog.Level.
func ParseLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("%w: empty level", ErrInvalidConfig)
	}
	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n), nil
	}
	if strings.EqualFold(value, "warning") {
		return slog.LevelWarn, nil
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("%w: level %q", ErrInvalidConfig, raw)
	}
	return lvl, nil
}
