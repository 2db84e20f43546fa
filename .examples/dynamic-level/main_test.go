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
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pjscruggs/slogdiscord/discordtest"
)

// TestDynamicLevelAdjustments verifies that runtime level changes suppress
// and re-enable delivery as demonstrated in the example.
func TestDynamicLevelAdjustments(t *testing.T) {
	t.Parallel()

	srv := discordtest.NewServer(t)
	if err := run(srv.WebhookURL()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		`level=WARN msg="raising minimum level to warn"`,
		`level=DEBUG msg="debug logging re-enabled via shared LevelVar"`,
	}
	if diff := cmp.Diff(want, srv.Contents()); diff != "" {
		t.Fatalf("contents mismatch (-want +got):\n%s", diff)
	}
}
