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

// AllocPage allocates the base page at index pindex of obj, clustering
// it into a reservation. mpred, if non-nil, must be the greatest page
// of obj with index strictly less than pindex; passing it lets the
// fast path avoid a fresh-reservation allocation when pindex already
// falls within an existing neighboring reservation.
//
// Precondition: the caller holds obj's write lock.
func (m *Manager) AllocPage(obj Object, pindex uint64, mpred Page) (Page, bool) {
	if pindex >= obj.Size() {
		return nil, false
	}
	first := m.superpageBase(pindex)
	n64 := uint64(m.n)

	if mpred != nil {
		if rv := m.reservationFor(mpred.PhysAddr()); rv != nil {
			if i, ok := rv.hasPindex(obj, pindex); ok {
				if page, ok := m.tryFound(rv, obj, pindex, i); ok {
					return page, true
				}
				return nil, false
			}
			leftcap := mpred.Index() + 1
			if leftcap > first {
				return nil, false
			}
		}
	}

	if msucc, ok := obj.Successor(pindex); ok {
		if rv := m.reservationFor(msucc.PhysAddr()); rv != nil {
			if i, ok := rv.hasPindex(obj, pindex); ok {
				if page, ok := m.tryFound(rv, obj, pindex, i); ok {
					return page, true
				}
				return nil, false
			}
		}
		rightcap := msucc.Index()
		if first+n64 > rightcap {
			return nil, false
		}
	}

	if first+n64 > obj.Size() && obj.IsVnodeBacked() {
		return nil, false
	}

	superpageSize := uintptr(1) << (m.opts.PageShift + uint(m.opts.Order))
	pages, ok := m.phys.Alloc(m.n, 0, ^uintptr(0), superpageSize, 0)
	if !ok {
		return nil, false
	}

	rv := m.reservationFor(pages[0].PhysAddr())
	if rv == nil {
		panic("reserv: physical allocator returned an unbacked address")
	}

	i := int(pindex - first)
	m.locks.lock(rv.tableIndex)
	m.freeMu.Lock()
	m.linkObject(obj, rv)
	rv.publish(obj, first)
	rv.pages = pages
	m.populate(rv, i)
	m.freeMu.Unlock()
	m.locks.unlock(rv.tableIndex)
	return rv.pages[i], true
}

// tryFound implements the "Found" step shared by the left- and
// right-lookup paths: under the reservation's lock, populate index i
// unless it is already occupied (a racing rename).
func (m *Manager) tryFound(rv *Reservation, obj Object, pindex uint64, i int) (Page, bool) {
	m.locks.lock(rv.tableIndex)
	defer m.locks.unlock(rv.tableIndex)

	if i2, ok := rv.hasPindex(obj, pindex); !ok || i2 != i {
		return nil, false
	}
	if rv.popmap.isSet(i) {
		return nil, false
	}
	m.freeMu.Lock()
	m.populate(rv, i)
	m.freeMu.Unlock()
	return rv.pages[i], true
}
