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

// Package slogdiscord provides a [log/slog] handler that posts log records
// to a Discord channel through an incoming webhook.
//
// ⚠️ This module is untested, and not recommended for any production use. ⚠️
//
// The primary entry point is [NewHandler], which returns a [Handler]
// configured with sensible defaults:
//   - Records are rendered by a [Layout], defaulting to
//     [NewMarkdownLayout], and shaped to Discord's 2000 character limit
//     with code fences kept balanced.
//   - Delivery runs on a single background worker, so Handle never waits on
//     the network and messages reach the channel in the order they were
//     logged.
//   - Discord's rate limit headers are honoured. A 429 response retries the
//     same message once the bucket resets.
//   - Any other unexpected response is reported to the error writer and a
//     warning message describing it is posted ahead of the remaining queue.
//
// The webhook URI, username, avatar URL and layout can be changed at any time
// through the setters on [Handler]. While no webhook URI is configured,
// records are still accepted and queued; delivery resumes as soon as one is
// set.
//
// # Quick Start
//
//	handler, err := slogdiscord.NewHandler(
//	    slogdiscord.WithWebhookURI(os.Getenv("DISCORD_WEBHOOK_URL")),
//	    slogdiscord.WithLevel(slog.LevelWarn),
//	    slogdiscord.WithFlushTimeout(5*time.Second),
//	)
//	if err != nil {
//	    log.Fatalf("create slogdiscord handler: %v", err)
//	}
//	defer handler.Close() // waits up to five seconds for queued messages
//
//	logger := slog.New(handler)
//	logger.Warn("disk almost full", "free_bytes", 1<<20)
//
// # Configuration
//
// Functional options such as [WithUsername], [WithQueueLimit],
// [WithRequestRate] and [WithMetricsRegisterer] adjust behaviour
// programmatically. The handler also reads SLOGDISCORD_WEBHOOK_URL (falling
// back to DISCORD_WEBHOOK_URL), SLOGDISCORD_USERNAME, SLOGDISCORD_AVATAR_URL,
// SLOGDISCORD_LEVEL, SLOGDISCORD_QUEUE_LIMIT, SLOGDISCORD_DROP_MODE and
// SLOGDISCORD_STRIP_ANSI. Explicit options win over the environment.
//
// # Subpackages
//
//   - [github.com/pjscruggs/slogdiscord/discordtest] runs a fake webhook
//     endpoint for tests.
//   - cmd/discordlog pipes standard input to a webhook from the shell.
package slogdiscord
