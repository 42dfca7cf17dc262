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
	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/log"
)

// Query fetches the response to a single query item.
//
// The kernel is asked for the response size first, then for the data. Any
// failure, including a zero or negative size or a size that changes between
// the two calls, yields an empty result. Unsupported queries are expected on
// older kernels, so failures are only logged at debug level.
func Query(f File, queryID uint64, flags uint32) []byte {
	items := []QueryItem{{QueryID: queryID, Flags: flags}}
	if err := f.Query(items); err != nil {
		log.Debugf("%s size probe failed: %v", i915.QueryName(queryID), err)
		return nil
	}
	size := items[0].Length
	if size <= 0 {
		log.Debugf("%s size probe returned %d", i915.QueryName(queryID), size)
		return nil
	}

	data := make([]byte, size)
	items[0].Data = data
	if err := f.Query(items); err != nil {
		log.Debugf("%s failed: %v", i915.QueryName(queryID), err)
		return nil
	}
	if items[0].Length != size {
		log.Debugf("%s returned %d bytes, probed %d", i915.QueryName(queryID), items[0].Length, size)
		return nil
	}
	return data
}

// QueryItems issues one query for a batch of items. On success each item's
// Length holds either the bytes written or a per-item negative errno.
func QueryItems(f File, items []QueryItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := f.Query(items); err != nil {
		return err
	}
	if log.IsLogging(log.Debug) {
		failed := 0
		for i := range items {
			if items[i].Length < 0 {
				failed++
			}
		}
		if failed > 0 {
			log.Debugf("%s: %d of %d items failed", i915.QueryName(items[0].QueryID), failed, len(items))
		}
	}
	return nil
}
