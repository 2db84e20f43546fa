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
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// MaxContentLength is Discord's limit on message content, counted in
	// UTF-16 code units.
	MaxContentLength = 2000

	// CodeFence opens and closes a Discord markdown code block.
	CodeFence = "```"
)

// Shape normalizes rendered text into content Discord accepts: empty code
// blocks are removed, and text over MaxContentLength is truncated while
// keeping a trailing code fence intact so the rest of the channel is not
// rendered as code. Shape is idempotent.
func Shape(text string) string {
	endsInFence := strings.HasSuffix(text, CodeFence)
	overLimit := ContentLength(text) > MaxContentLength

	text = elideAll(text)
	if ContentLength(text) <= MaxContentLength && (!overLimit || !endsInFence || strings.HasSuffix(text, CodeFence)) {
		return text
	}
	if !endsInFence {
		// A prefix of elided text has no empty blocks of its own.
		return truncateUnits(text, MaxContentLength)
	}
	return truncateWithFence(text)
}

// truncateWithFence cuts text to make room for a closing fence. When the cut
// leaves an opening fence followed by whitespace, the appended fence would
// form an empty block, so the prefix backs off until the fence survives
// elision.
func truncateWithFence(text string) string {
	prefix := truncateUnits(text, MaxContentLength-len(CodeFence))
	for {
		out := elideAll(prefix + CodeFence)
		if strings.HasSuffix(out, CodeFence) {
			return out
		}
		_, size := utf8.DecodeLastRuneInString(prefix)
		prefix = prefix[:len(prefix)-size]
	}
}

// elideAll removes empty blocks until none remain. Removing one can expose
// another, as in "``` `````` ```".
func elideAll(text string) string {
	for {
		next := elideEmptyBlocks(text)
		if next == text {
			return text
		}
		text = next
	}
}

// elideEmptyBlocks removes every empty code block: an opening fence, exactly
// one whitespace character and a closing fence. Fences are paired left to
// right, so the gap between a closing fence and the next opening fence, as
// in "```A``` ```B```", is not an empty block.
func elideEmptyBlocks(s string) string {
	var (
		b    strings.Builder
		open bool
		last int
	)
	n := len(CodeFence)
	for i := 0; i+n <= len(s); {
		if s[i:i+n] != CodeFence {
			i++
			continue
		}
		if !open {
			j := i + n
			if j < len(s) && isFenceSpace(s[j]) && strings.HasPrefix(s[j+1:], CodeFence) {
				b.WriteString(s[last:i])
				i = j + 1 + n
				last = i
				continue
			}
		}
		open = !open
		i += n
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// isFenceSpace reports ASCII whitespace, including the vertical tab.
func isFenceSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// ContentLength reports the length of s in UTF-16 code units.
func ContentLength(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// truncateUnits returns the longest prefix of s that fits in limit UTF-16
// code units without splitting a rune.
func truncateUnits(s string, limit int) string {
	n := 0
	for i, r := range s {
		w := runeUnits(r)
		if n+w > limit {
			return s[:i]
		}
		n += w
	}
	return s
}

func runeUnits(r rune) int {
	if w := utf16.RuneLen(r); w > 0 {
		return w
	}
	return 1
}
