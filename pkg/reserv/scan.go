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

// Scan advances the persistent MARKER through the ACTIVE LRU,
// starting from wherever it stopped last time, demoting up to target
// reservations to INACTIVE. It returns the number actually demoted,
// which may be less than target if the pass reaches the end of
// ACTIVE first; when that happens the MARKER wraps to the head of
// ACTIVE so the next call resumes a fresh pass rather than staying
// stuck at the tail. A single call never scans the list more than
// once.
//
// A single Manager here plays the role the original assigns one
// instance per NUMA domain; per the package's non-goal on NUMA
// placement policy, callers wanting per-domain aging run one Manager
// per domain.
func (m *Manager) Scan(target int) int {
	m.freeMu.Lock()
	defer m.freeMu.Unlock()

	demoted := 0
	for demoted < target {
		rv := m.marker.lruNext
		if rv == nil {
			// Ran off the tail of ACTIVE in this pass; wrap the
			// marker to the head for the next call and stop — a
			// single Scan call never revisits the list twice.
			m.active.remove(&m.marker)
			m.active.pushHead(&m.marker)
			break
		}
		if rv.isMarker() {
			break
		}
		if !m.locks.tryLock(rv.tableIndex) {
			m.advanceMarkerPast(rv)
			continue
		}
		if rv.actcnt <= actDec {
			m.active.remove(rv)
			rv.actcnt = 0
			rv.flags &^= flagActive
			rv.flags |= flagInactive
			m.inactive.pushTail(rv)
			demoted++
		} else {
			rv.actcnt -= actDec
			m.advanceMarkerPast(rv)
		}
		m.locks.unlock(rv.tableIndex)
	}
	return demoted
}

// advanceMarkerPast moves the MARKER to immediately follow rv, which
// must currently be the MARKER's next entry in the ACTIVE queue and
// must remain in it (the caller has decided not to dequeue rv).
func (m *Manager) advanceMarkerPast(rv *Reservation) {
	m.active.remove(&m.marker)
	m.marker.lruPrev = rv
	m.marker.lruNext = rv.lruNext
	if rv.lruNext != nil {
		rv.lruNext.lruPrev = &m.marker
	} else {
		m.active.tail = &m.marker
	}
	rv.lruNext = &m.marker
}
