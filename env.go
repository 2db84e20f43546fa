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
	"os"
	"strconv"
	"strings"
)

const (
	envWebhookURL        = "SLOGDISCORD_WEBHOOK_URL"
	envDiscordWebhookURL = "DISCORD_WEBHOOK_URL"
	envUsername          = "SLOGDISCORD_USERNAME"
	envAvatarURL         = "SLOGDISCORD_AVATAR_URL"
	envLevel             = "SLOGDISCORD_LEVEL"
	envQueueLimit        = "SLOGDISCORD_QUEUE_LIMIT"
	envDropMode          = "SLOGDISCORD_DROP_MODE"
	envStripANSI         = "SLOGDISCORD_STRIP_ANSI"
)

// handlerConfig is the resolved configuration: environment first, then options.
type handlerConfig struct {
	WebhookURI string
	Username   string
	AvatarURL  string
	Level      slog.Level
	QueueLimit int
	DropMode   DropMode
	StripANSI  bool
}

// defaultConfig returns the settings used when nothing is configured.
func defaultConfig() handlerConfig {
	return handlerConfig{
		Level:     slog.LevelInfo,
		DropMode:  DropModeNone,
		StripANSI: true,
	}
}

// configFromEnv overlays environment variables on the defaults. Malformed
// values are reported rather than ignored so a typo does not silently
// disable delivery.
func configFromEnv() (handlerConfig, error) {
	cfg := defaultConfig()

	cfg.WebhookURI = firstNonEmpty(trimmedEnv(envWebhookURL), trimmedEnv(envDiscordWebhookURL))
	cfg.Username = trimmedEnv(envUsername)
	cfg.AvatarURL = trimmedEnv(envAvatarURL)

	if raw := trimmedEnv(envLevel); raw != "" {
		lvl, err := ParseLevel(raw)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", envLevel, err)
		}
		cfg.Level = lvl
	}

	if raw := trimmedEnv(envQueueLimit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return cfg, fmt.Errorf("%w: %s=%q is not a non-negative integer", ErrInvalidConfig, envQueueLimit, raw)
		}
		cfg.QueueLimit = limit
	}

	if raw := trimmedEnv(envDropMode); raw != "" {
		mode, ok := parseDropMode(raw)
		if !ok {
			return cfg, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, envDropMode, raw)
		}
		cfg.DropMode = mode
	}

	if raw := trimmedEnv(envStripANSI); raw != "" {
		enabled, ok := parseBool(raw)
		if !ok {
			return cfg, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, envStripANSI, raw)
		}
		cfg.StripANSI = enabled
	}

	return cfg, nil
}

// parseDropMode accepts the names used by the environment and the CLI.
func parseDropMode(raw string) (DropMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "":
		return DropModeNone, true
	case "drop_newest", "drop-newest", "newest":
		return DropModeDropNewest, true
	case "drop_oldest", "drop-oldest", "oldest":
		return DropModeDropOldest, true
	default:
		return DropModeNone, false
	}
}

// parseBool accepts yes/on/1/true and no/off/0/false tokens.
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
