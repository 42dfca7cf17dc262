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

// Package cleanup releases partially acquired resources when a multi-step
// acquisition fails.
package cleanup

import "gvisor.dev/gpudrm/pkg/log"

// Cleanup holds the undo functions of the steps taken so far. Usage:
//
//	f, err := drm.Open(path, opts)
//	...
//	cu := cleanup.Make(func() { f.Close() })
//	defer cu.Clean() // failure before Release closes the render node.
//	...
//	cu.AddRelease("VM", func() error { return f.DestroyVM(vm) })
//	...
//	cu.Release() // on success, keeps everything.
//	return f
//
// The zero value is an empty Cleanup.
type Cleanup struct {
	cleaners []func()
}

// Make creates a new Cleanup object.
func Make(f func()) Cleanup {
	return Cleanup{cleaners: []func(){f}}
}

// Add adds a new function to be called on Clean().
func (c *Cleanup) Add(f func()) {
	c.cleaners = append(c.cleaners, f)
}

// AddRelease adds a function releasing what. A failure to release is logged,
// since the error that triggered Clean is the one callers report.
func (c *Cleanup) AddRelease(what string, f func() error) {
	c.Add(func() {
		if err := f(); err != nil {
			log.Warningf("Releasing %s: %v", what, err)
		}
	})
}

// Pending returns the number of functions Clean would call.
func (c *Cleanup) Pending() int {
	return len(c.cleaners)
}

// Clean calls all cleanup functions in reverse order.
func (c *Cleanup) Clean() {
	clean(c.cleaners)
	c.cleaners = nil
}

// Release releases the cleanup from its duties, i.e. cleanup functions are not
// called after this point. Returns a function that calls all registered
// functions in case the caller has use for them.
func (c *Cleanup) Release() func() {
	old := c.cleaners
	c.cleaners = nil
	return func() { clean(old) }
}

func clean(cleaners []func()) {
	for i := len(cleaners) - 1; i >= 0; i-- {
		cleaners[i]()
	}
}
