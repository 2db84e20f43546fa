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

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pjscruggs/slogdiscord"
)

const (
	keyWebhook      = "webhook"
	keyUsername     = "username"
	keyAvatarURL    = "avatar-url"
	keyLevel        = "level"
	keyCodeBlock    = "code-block"
	keyWhole        = "whole"
	keyFlushTimeout = "flush-timeout"

	maxLineBytes = 1 << 20
)

var errNoWebhook = errors.New("no webhook configured: pass --webhook or set DISCORD_WEBHOOK_URL")

// newRootCommand builds the discordlog command around its own viper
// instance so tests can run it repeatedly.
func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "discordlog",
		Short: "Pipe standard input to a Discord webhook",
		Long: `discordlog copies standard input to standard output and posts it to a
Discord channel through a webhook, one message per line or, with --whole,
the entire input as a single message.

Settings are read from flags, then DISCORD_* environment variables, then an
optional YAML config file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, stdin, stdout, stderr)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String(keyWebhook, "", "Discord webhook URL")
	flags.String(keyUsername, "", "override the webhook display name")
	flags.String(keyAvatarURL, "", "override the webhook avatar")
	flags.String(keyLevel, "info", "level each message is logged at")
	flags.Bool(keyCodeBlock, false, "wrap each message in a code block")
	flags.Bool(keyWhole, false, "send the whole input as one message")
	flags.Duration(keyFlushTimeout, 10*time.Second, "how long to wait for delivery after input ends")

	for _, key := range []string{keyWebhook, keyUsername, keyAvatarURL, keyLevel, keyCodeBlock, keyWhole, keyFlushTimeout} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}
	return cmd
}

// loadConfig wires environment variables and the optional config file into v.
func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("discord")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(keyWebhook, "DISCORD_WEBHOOK_URL", "SLOGDISCORD_WEBHOOK_URL")

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

func run(ctx context.Context, v *viper.Viper, stdin io.Reader, stdout, stderr io.Writer) error {
	webhookURL := strings.TrimSpace(v.GetString(keyWebhook))
	if webhookURL == "" {
		return errNoWebhook
	}
	level, err := slogdiscord.ParseLevel(v.GetString(keyLevel))
	if err != nil {
		return err
	}

	layout := slogdiscord.NewMessageLayout()
	if v.GetBool(keyCodeBlock) {
		layout = slogdiscord.CodeBlock(layout, "")
	}

	h, err := slogdiscord.NewHandler(
		slogdiscord.WithWebhookURI(webhookURL),
		slogdiscord.WithUsername(v.GetString(keyUsername)),
		slogdiscord.WithAvatarURL(v.GetString(keyAvatarURL)),
		slogdiscord.WithLevel(slog.LevelDebug-4),
		slogdiscord.WithLayout(layout),
		slogdiscord.WithFlushTimeout(v.GetDuration(keyFlushTimeout)),
		slogdiscord.WithInternalLogger(slog.New(slog.NewTextHandler(stderr, nil))),
		slogdiscord.WithErrorWriter(stderr),
	)
	if err != nil {
		return err
	}
	logger := slog.New(h)

	if v.GetBool(keyWhole) {
		err = sendWhole(ctx, logger, level, stdin, stdout)
	} else {
		err = sendLines(ctx, logger, level, stdin, stdout)
	}
	if closeErr := h.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// sendLines echoes and logs each non-blank line as it arrives.
func sendLines(ctx context.Context, logger *slog.Logger, level slog.Level, stdin io.Reader, stdout io.Writer) error {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if _, err := fmt.Fprintln(stdout, line); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		logger.Log(ctx, level, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

// sendWhole echoes the full input and logs it as one message.
func sendWhole(ctx context.Context, logger *slog.Logger, level slog.Level, stdin io.Reader, stdout io.Writer) error {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if _, err := stdout.Write(data); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	text := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	logger.Log(ctx, level, text)
	return nil
}
