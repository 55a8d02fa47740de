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

// IsPageFree reports whether p is currently unallocated within its
// reservation. It is advisory: callers hold no lock, so the answer
// may be stale by the time it is used.
func (m *Manager) IsPageFree(p Page) bool {
	rv := m.reservationFor(p.PhysAddr())
	if rv == nil {
		return false
	}
	if rv.object == nil {
		return true
	}
	i := int((p.PhysAddr() - rv.pages[0].PhysAddr()) >> m.opts.PageShift)
	return rv.popmap.isClear(i)
}

// Level returns 0 if p belongs to a reservation currently claimed by
// some object, or -1 otherwise. Since this package implements only a
// single reservation level (see Non-goals), 0 is the only non-error
// value.
func (m *Manager) Level(p Page) int {
	rv := m.reservationFor(p.PhysAddr())
	if rv == nil || rv.object == nil {
		return -1
	}
	return 0
}

// LevelIffullpop returns 0 if p belongs to a fully populated
// reservation, or -1 otherwise.
func (m *Manager) LevelIffullpop(p Page) int {
	rv := m.reservationFor(p.PhysAddr())
	if rv == nil || rv.popcnt != rv.n {
		return -1
	}
	return 0
}

// Size returns the number of bytes spanned by one reservation at the
// given level. Only level 0 is valid.
func (m *Manager) Size(level int) uintptr {
	if level != 0 {
		return 0
	}
	return uintptr(m.n) << m.opts.PageShift
}
