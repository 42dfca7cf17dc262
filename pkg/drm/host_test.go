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

package drm

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
)

func TestIoctlRestarts(t *testing.T) {
	for _, tc := range []struct {
		name        string
		errs        []error
		wantCalls   int
		wantErrno   unix.Errno
		maxRestarts uint64
	}{
		{
			name:        "success",
			errs:        nil,
			wantCalls:   1,
			maxRestarts: 4,
		},
		{
			name:        "restart on EINTR EAGAIN EBUSY",
			errs:        []error{unix.EINTR, unix.EAGAIN, unix.EBUSY},
			wantCalls:   4,
			maxRestarts: 4,
		},
		{
			name:        "EINVAL is not restarted",
			errs:        []error{unix.EINVAL, unix.EINTR},
			wantCalls:   1,
			wantErrno:   unix.EINVAL,
			maxRestarts: 4,
		},
		{
			name:        "restart budget exhausted",
			errs:        []error{unix.EINTR, unix.EINTR, unix.EINTR, unix.EINTR},
			wantCalls:   3,
			wantErrno:   unix.EINTR,
			maxRestarts: 2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := &HostFile{fd: -1, path: "test", maxRestarts: tc.maxRestarts}
			calls := 0
			err := f.ioctl(i915.DRM_IOCTL_I915_GETPARAM, func() error {
				calls++
				if calls <= len(tc.errs) {
					return tc.errs[calls-1]
				}
				return nil
			})
			if calls != tc.wantCalls {
				t.Errorf("ioctl invoked %d times, want %d", calls, tc.wantCalls)
			}
			if tc.wantErrno == 0 {
				if err != nil {
					t.Errorf("ioctl failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErrno) {
				t.Errorf("ioctl returned %v, want %v", err, tc.wantErrno)
			}
		})
	}
}

func TestOpenMissingNode(t *testing.T) {
	if _, err := Open("/nonexistent/dri/renderD128", OpenOptions{}); !errors.Is(err, unix.ENOENT) {
		t.Errorf("Open returned %v, want ENOENT", err)
	}
}

func TestCloseTwice(t *testing.T) {
	f := &HostFile{fd: -1}
	if err := f.Close(); err != nil {
		t.Errorf("Close on closed file = %v, want nil", err)
	}
}
