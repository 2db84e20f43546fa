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
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// clearEnv blanks every variable the handler reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envWebhookURL, envDiscordWebhookURL, envUsername, envAvatarURL,
		envLevel, envQueueLimit, envDropMode, envStripANSI,
	} {
		t.Setenv(key, "")
	}
}

// TestConfigFromEnvDefaults verifies the zero environment.
func TestConfigFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() returned %v", err)
	}
	if diff := cmp.Diff(defaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

// TestConfigFromEnv verifies every variable is honoured.
func TestConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWebhookURL, " https://discord.com/api/webhooks/1/a ")
	t.Setenv(envDiscordWebhookURL, "https://discord.com/api/webhooks/2/b")
	t.Setenv(envUsername, "ops")
	t.Setenv(envAvatarURL, "https://example.com/ops.png")
	t.Setenv(envLevel, "warning")
	t.Setenv(envQueueLimit, "100")
	t.Setenv(envDropMode, "drop-oldest")
	t.Setenv(envStripANSI, "off")

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() returned %v", err)
	}
	want := handlerConfig{
		WebhookURI: "https://discord.com/api/webhooks/1/a",
		Username:   "ops",
		AvatarURL:  "https://example.com/ops.png",
		Level:      slog.LevelWarn,
		QueueLimit: 100,
		DropMode:   DropModeDropOldest,
		StripANSI:  false,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

// TestConfigFromEnvFallbackWebhook verifies DISCORD_WEBHOOK_URL is used when
// the prefixed variable is unset.
func TestConfigFromEnvFallbackWebhook(t *testing.T) {
	clearEnv(t)
	t.Setenv(envDiscordWebhookURL, "https://discord.com/api/webhooks/2/b")

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() returned %v", err)
	}
	if cfg.WebhookURI != "https://discord.com/api/webhooks/2/b" {
		t.Errorf("WebhookURI = %q, want the fallback variable", cfg.WebhookURI)
	}
}

// TestConfigFromEnvMalformed verifies bad values are rejected.
func TestConfigFromEnvMalformed(t *testing.T) {
	testCases := map[string]string{
		envLevel:      "shouty",
		envQueueLimit: "-3",
		envDropMode:   "random",
		envStripANSI:  "maybe",
	}
	for key, value := range testCases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := configFromEnv(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("configFromEnv() with %s=%q error = %v, want ErrInvalidConfig", key, value, err)
			}
		})
	}
}

// TestNewHandlerOptionsOverrideEnv verifies explicit options win.
func TestNewHandlerOptionsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWebhookURL, "https://discord.com/api/webhooks/1/env")
	t.Setenv(envUsername, "env-user")
	t.Setenv(envLevel, "error")

	h, err := NewHandler(
		WithWebhookURI("https://discord.com/api/webhooks/1/option"),
		WithLevel(slog.LevelDebug),
		WithManualStart(),
		WithErrorWriter(nil),
	)
	if err != nil {
		t.Fatalf("NewHandler() returned %v", err)
	}
	defer h.Close()

	if got := h.WebhookURI(); got != "https://discord.com/api/webhooks/1/option" {
		t.Errorf("WebhookURI() = %q, want the option value", got)
	}
	if name, _ := h.Username(); name != "env-user" {
		t.Errorf("Username() = %q, want the environment value", name)
	}
	if !h.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false, want the option level to win")
	}
}

// TestNewHandlerInvalidEnv verifies a malformed environment fails construction.
func TestNewHandlerInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWebhookURL, "not a url")

	if _, err := NewHandler(WithManualStart()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewHandler() error = %v, want ErrInvalidConfig", err)
	}
}

// TestParseDropMode covers the accepted spellings.
func TestParseDropMode(t *testing.T) {
	t.Parallel()

	testCases := map[string]DropMode{
		"none":        DropModeNone,
		"drop_newest": DropModeDropNewest,
		"NEWEST":      DropModeDropNewest,
		"drop-oldest": DropModeDropOldest,
		"oldest":      DropModeDropOldest,
	}
	for raw, want := range testCases {
		got, ok := parseDropMode(raw)
		if !ok || got != want {
			t.Errorf("parseDropMode(%q) = %v, %v; want %v, true", raw, got, ok, want)
		}
	}
}
