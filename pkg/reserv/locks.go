// Copyright 2018 The gVisor Authors.
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

package reserv

import "sync"

// lockStripes is the size of the striped lock array (component D).
// 256 mirrors the original's RV_LOCK_COUNT: few enough to bound
// memory overhead, many enough to deliver near-per-reservation
// contention on realistic table sizes (see DESIGN NOTES).
const lockStripes = 256

// stripeLock pads each mutex to absorb false sharing between adjacent stripes,
// matching the intent of the original's mtx_padalign.
type stripeLock struct {
	mu  sync.Mutex
	_   [64 - unsafeSizeofMutex]byte
}

// unsafeSizeofMutex is a conservative estimate of sync.Mutex's size
// used only to size the padding above; it need not be exact.
const unsafeSizeofMutex = 8

type lockArray struct {
	stripes [lockStripes]stripeLock
}

// stripeFor returns the stripe index a given table slot maps to.
func stripeFor(tableIndex int) int {
	return tableIndex % lockStripes
}

func (l *lockArray) lock(tableIndex int) {
	l.stripes[stripeFor(tableIndex)].mu.Lock()
}

func (l *lockArray) unlock(tableIndex int) {
	l.stripes[stripeFor(tableIndex)].mu.Unlock()
}

func (l *lockArray) tryLock(tableIndex int) bool {
	return l.stripes[stripeFor(tableIndex)].mu.TryLock()
}
