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

package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the JSON body of an execute-webhook request. Nil overrides are
// encoded as null, which Discord treats as "use the webhook's default".
type Payload struct {
	Content   string  `json:"content"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// NewPayload builds a Payload, treating empty overrides as unset.
func NewPayload(content, username, avatarURL string) Payload {
	return Payload{
		Content:   content,
		Username:  optional(username),
		AvatarURL: optional(avatarURL),
	}
}

// Encode marshals the payload without HTML escaping so log text such as
// "<nil>" or "a && b" reaches Discord as written.
func (p Payload) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
