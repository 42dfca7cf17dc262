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
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/log"
)

// DefaultMaxRestarts bounds how many times an interrupted ioctl is reissued.
const DefaultMaxRestarts = 64

// restartLog reports interrupted ioctls without flooding the log when a
// device is busy.
var restartLog = log.BasicRateLimitedLogger(5 * time.Second)

// OpenOptions configures Open.
type OpenOptions struct {
	// MaxRestarts bounds how many times an ioctl interrupted with EINTR,
	// EAGAIN or EBUSY is reissued. Zero means DefaultMaxRestarts.
	MaxRestarts uint64
}

// HostFile is an i915 render node opened on the host.
type HostFile struct {
	fd          int32
	path        string
	maxRestarts uint64
}

var _ File = (*HostFile)(nil)

// Open opens the render node at path, e.g. /dev/dri/renderD128.
func Open(path string, opts OpenOptions) (*HostFile, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	if opts.MaxRestarts == 0 {
		opts.MaxRestarts = DefaultMaxRestarts
	}
	log.Debugf("Opened %q as fd %d", path, fd)
	return &HostFile{
		fd:          int32(fd),
		path:        path,
		maxRestarts: opts.MaxRestarts,
	}, nil
}

// Path returns the path the file was opened with.
func (f *HostFile) Path() string {
	return f.path
}

// FD returns the host file descriptor.
func (f *HostFile) FD() int32 {
	return f.fd
}

// Close implements File.Close.
func (f *HostFile) Close() error {
	if f.fd < 0 {
		return nil
	}
	err := unix.Close(int(f.fd))
	f.fd = -1
	return err
}

// restartable reports whether an ioctl failing with errno should be issued
// again unchanged.
func restartable(errno unix.Errno) bool {
	switch errno {
	case unix.EINTR, unix.EAGAIN, unix.EBUSY:
		return true
	default:
		return false
	}
}

// ioctl runs invoke until it succeeds, fails with a non-restartable error or
// exhausts the restart budget.
func (f *HostFile) ioctl(req uint32, invoke func() error) error {
	restarts := 0
	op := func() error {
		err := invoke()
		if err == nil {
			return nil
		}
		var errno unix.Errno
		if errors.As(err, &errno) && restartable(errno) {
			restarts++
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, f.maxRestarts))
	if restarts > 0 {
		restartLog.Warningf("%s on %s restarted %d times", i915.IoctlName(req), f.path, restarts)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", i915.IoctlName(req), err)
	}
	return nil
}
