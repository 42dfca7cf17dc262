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

package gpu

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gvisor.dev/gpudrm/pkg/cleanup"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
	"gvisor.dev/gpudrm/pkg/log"
)

// OpenOptions configure Open.
type OpenOptions struct {
	Device Options

	// Helper selects the kernel dialect. CardPath is taken from the host
	// device.
	Helper ioctlhelper.Options

	// MaxRestarts bounds the re-issue of interrupted ioctls.
	MaxRestarts uint64
}

// Open opens the render node of hd and discovers the device.
func Open(ctx context.Context, hd HostDevice, opts OpenOptions) (*Device, error) {
	f, err := drm.Open(hd.RenderPath, drm.OpenOptions{MaxRestarts: opts.MaxRestarts})
	if err != nil {
		return nil, err
	}
	var cu cleanup.Cleanup
	cu.AddRelease(hd.RenderPath, f.Close)
	defer cu.Clean()

	helperOpts := opts.Helper
	helperOpts.CardPath = hd.CardPath
	b, err := NewDRMBackend(f, helperOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hd.Name(), err)
	}
	cu.Release()

	// NewDevice owns the backend from here on.
	d, err := NewDevice(ctx, b, opts.Device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hd.Name(), err)
	}
	return d, nil
}

// OpenFunc opens one host device.
type OpenFunc func(ctx context.Context, hd HostDevice) (*Device, error)

// DiscoverAll brings up devices concurrently, one goroutine per device. The
// result is in the order of devices. If any device fails, the devices
// already brought up are closed and the first error is returned.
func DiscoverAll(ctx context.Context, devices []HostDevice, open OpenFunc) ([]*Device, error) {
	out := make([]*Device, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	for i, hd := range devices {
		g.Go(func() error {
			d, err := open(gctx, hd)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, d := range out {
			if d == nil {
				continue
			}
			if cerr := d.Close(); cerr != nil {
				log.Warningf("Closing device: %v", cerr)
			}
		}
		return nil, err
	}
	return out, nil
}
