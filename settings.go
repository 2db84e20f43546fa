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
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/pjscruggs/slogdiscord/internal/delivery"
	"github.com/pjscruggs/slogdiscord/internal/webhook"
)

// settings holds the four runtime-mutable properties. Each is swapped
// independently; the worker snapshots them once per request.
type settings struct {
	webhookURI atomic.Pointer[string]
	username   atomic.Pointer[string]
	avatarURL  atomic.Pointer[string]
	layout     atomic.Pointer[layoutBox]
}

type layoutBox struct {
	Layout
}

func (s *settings) target() delivery.Target {
	return delivery.Target{
		URL:       load(&s.webhookURI),
		Username:  load(&s.username),
		AvatarURL: load(&s.avatarURL),
	}
}

func (s *settings) currentLayout() Layout {
	if box := s.layout.Load(); box != nil {
		return box.Layout
	}
	return defaultLayout
}

func load(p *atomic.Pointer[string]) string {
	if v := p.Load(); v != nil {
		return *v
	}
	return ""
}

func store(p *atomic.Pointer[string], v string) {
	p.Store(&v)
}

// SetWebhookURI changes the webhook that subsequent requests are sent to.
// An empty URI pauses delivery; queued messages are kept. The URI must be an
// absolute http or https URL.
func (h *Handler) SetWebhookURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if err := validateWebhookURI(uri); err != nil {
		return err
	}
	store(&h.state.settings.webhookURI, uri)
	return nil
}

// WebhookURI returns the configured webhook URI, which may be empty.
func (h *Handler) WebhookURI() string {
	return load(&h.state.settings.webhookURI)
}

// SetLayout replaces the layout used for records handled from now on. A nil
// layout restores the default.
func (h *Handler) SetLayout(layout Layout) {
	if layout == nil {
		layout = defaultLayout
	}
	h.state.settings.layout.Store(&layoutBox{Layout: layout})
}

// Layout returns the current layout.
func (h *Handler) Layout() Layout {
	return h.state.settings.currentLayout()
}

// SetUsername overrides the webhook display name. An empty name removes the
// override.
func (h *Handler) SetUsername(name string) {
	store(&h.state.settings.username, name)
}

// Username returns the display name override and whether one is set.
func (h *Handler) Username() (string, bool) {
	name := load(&h.state.settings.username)
	return name, name != ""
}

// SetAvatarURL overrides the webhook avatar. An empty URL removes the
// override.
func (h *Handler) SetAvatarURL(avatarURL string) {
	store(&h.state.settings.avatarURL, avatarURL)
}

// AvatarURL returns the avatar override and whether one is set.
func (h *Handler) AvatarURL() (string, bool) {
	avatar := load(&h.state.settings.avatarURL)
	return avatar, avatar != ""
}

// validateWebhookURI accepts an empty URI or an absolute http(s) URL.
func validateWebhookURI(uri string) error {
	if uri == "" {
		return nil
	}
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhook URI %s must be an absolute http(s) URL", ErrInvalidConfig, webhook.RedactURL(uri))
	}
	return nil
}
