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

import "github.com/pjscruggs/slogdiscord/internal/webhook"

// MaxContentLength is Discord's message limit in UTF-16 code units.
const MaxContentLength = webhook.MaxContentLength

// Shape returns text as it would be posted: empty code blocks removed and
// clamped to MaxContentLength, keeping a trailing code fence. Useful for
// previewing a custom Layout.
func Shape(text string) string {
	return webhook.Shape(text)
}
