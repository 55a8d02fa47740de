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

import "fmt"

// Tuning constants for the LRU activation counter. The spec leaves
// their exact values to the implementation; only ACT_MAX (actMax,
// declared in reservation.go) and the relative ordering (DEC < ACT_MAX)
// are load-bearing for ager liveness (testable property 7).
const (
	actInit  = 5 // initial actcnt on entering PARTPOP
	popStep  = 5 // actcnt bump on a populate of an already-ACTIVE reservation
	depopStep = 1 // actcnt bump on a depopulate of an already-ACTIVE reservation
	actDec   = 1 // ager's per-sweep decrement
)

// populate sets bit i, bumps popcnt, and runs the LRU transition
// table (§4.F). Precondition: the caller holds rv's stripe lock and
// the free-page lock; bit i is currently clear.
func (m *Manager) populate(rv *Reservation, i int) {
	if rv.popmap.isSet(i) {
		panic(fmt.Sprintf("reserv: populate on already-set bit %d of %s", i, rv))
	}
	rv.popmap.set(i)
	rv.popcnt++
	if rv.popcnt == rv.n {
		rv.pages[0].SetPsind(1)
	}
	m.updateLRU(rv, popStep)
}

// updateLRU implements the full state transition table of §4.I
// "update_lru". Precondition: the caller holds rv's stripe lock and
// the free-page lock.
func (m *Manager) updateLRU(rv *Reservation, advance int) {
	switch {
	case rv.popcnt == rv.n:
		m.dequeueLRU(rv)
	case rv.popcnt == 0:
		m.dequeueLRU(rv)
	case rv.flags&flagActive == 0:
		if rv.flags&flagInactive != 0 {
			m.inactive.remove(rv)
			rv.flags &^= flagInactive
		}
		rv.actcnt = actInit
		rv.flags |= flagActive
		m.active.pushTail(rv)
	default:
		rv.actcnt += advance
		if rv.actcnt > actMax {
			rv.actcnt = actMax
		}
		m.active.remove(rv)
		m.active.pushTail(rv)
	}
}

// dequeueLRU removes rv from whichever PARTPOP queue it is in, if
// any. It refuses to operate on the MARKER. Precondition: the caller
// holds the free-page lock.
func (m *Manager) dequeueLRU(rv *Reservation) {
	if rv.isMarker() {
		panic("reserv: attempted to dequeue the MARKER")
	}
	if rv.flags&flagActive != 0 {
		m.active.remove(rv)
		rv.flags &^= flagActive
	}
	if rv.flags&flagInactive != 0 {
		m.inactive.remove(rv)
		rv.flags &^= flagInactive
	}
}
