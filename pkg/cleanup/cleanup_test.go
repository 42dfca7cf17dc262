// Copyright 2026 The gVisor Authors.
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

package cleanup

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/gpudrm/pkg/log"
)

func TestCleanOrder(t *testing.T) {
	var order []string
	cu := Make(func() { order = append(order, "fd") })
	cu.Add(func() { order = append(order, "vm") })
	cu.AddRelease("context", func() error {
		order = append(order, "context")
		return nil
	})
	if got := cu.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}

	cu.Clean()
	if diff := cmp.Diff([]string{"context", "vm", "fd"}, order); diff != "" {
		t.Errorf("release order mismatch (-want +got):\n%s", diff)
	}
	if got := cu.Pending(); got != 0 {
		t.Errorf("Pending() after Clean = %d, want 0", got)
	}

	// A second Clean is a no-op.
	cu.Clean()
	if len(order) != 3 {
		t.Errorf("second Clean called %d functions", len(order)-3)
	}
}

func TestRelease(t *testing.T) {
	released := 0
	var cu Cleanup
	cu.Add(func() { released++ })
	cu.AddRelease("buffer", func() error {
		released++
		return nil
	})

	undo := cu.Release()
	cu.Clean()
	if released != 0 {
		t.Fatalf("Clean after Release called %d functions", released)
	}

	undo()
	if released != 2 {
		t.Errorf("returned function called %d functions, want 2", released)
	}
}

type captureEmitter struct {
	lines []string
}

func (e *captureEmitter) Emit(_ int, _ log.Level, _ time.Time, format string, v ...any) {
	e.lines = append(e.lines, fmt.Sprintf(format, v...))
}

func TestAddReleaseLogsFailure(t *testing.T) {
	e := &captureEmitter{}
	old := log.Log()
	log.SetTarget(e)
	defer log.SetTarget(old.Emitter)

	var cu Cleanup
	cu.AddRelease("VM 3", func() error { return errors.New("no such VM") })
	cu.Clean()

	if len(e.lines) != 1 || !strings.Contains(e.lines[0], "Releasing VM 3: no such VM") {
		t.Errorf("logged %q, want one release failure", e.lines)
	}
}
