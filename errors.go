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

import "errors"

var (
	// ErrInvalidConfig wraps every configuration error reported by NewHandler
	// and the setters.
	ErrInvalidConfig = errors.New("slogdiscord: invalid configuration")

	// ErrFlushTimeout indicates Close returned before the queue was fully drained.
	ErrFlushTimeout = errors.New("slogdiscord: flush timeout")
)
