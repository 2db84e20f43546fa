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

// Command basic posts a single record to the webhook named by
// DISCORD_WEBHOOK_URL.
//
// This example is both documentation, and a test for `slogdiscord`.
package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/pjscruggs/slogdiscord"
)

// main runs the basic slogdiscord example.
func main() {
	if err := run(os.Getenv("DISCORD_WEBHOOK_URL")); err != nil {
		log.Fatalf("basic example: %v", err)
	}
}

// run logs one record and waits for it to be delivered.
func run(webhookURL string) error {
	handler, err := slogdiscord.NewHandler(
		slogdiscord.WithWebhookURI(webhookURL),
		slogdiscord.WithUsername("basic example"),
		slogdiscord.WithFlushTimeout(10*time.Second),
	)
	if err != nil {
		return err
	}

	slog.New(handler).Info("service ready", "pid", os.Getpid())
	return handler.Close()
}
