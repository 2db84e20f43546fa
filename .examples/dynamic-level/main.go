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

// Command dynamic-level shows how a shared slog.LevelVar changes what reaches
// Discord without rebuilding the handler.
package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/pjscruggs/slogdiscord"
)

func main() {
	if err := run(os.Getenv("DISCORD_WEBHOOK_URL")); err != nil {
		log.Fatalf("dynamic-level example: %v", err)
	}
}

func run(webhookURL string) error {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	handler, err := slogdiscord.NewHandler(
		slogdiscord.WithWebhookURI(webhookURL),
		slogdiscord.WithLevel(level),
		slogdiscord.WithLayout(slogdiscord.NewTextLayout(nil)),
		slogdiscord.WithFlushTimeout(10*time.Second),
	)
	if err != nil {
		return err
	}
	logger := slog.New(handler)

	logger.Debug("suppressed debug")
	logger.Warn("raising minimum level to warn")

	level.Set(slog.LevelDebug)
	logger.Debug("debug logging re-enabled via shared LevelVar")

	return handler.Close()
}
