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

// FreePage releases a single base page back to its reservation. It
// returns false if the page's reservation is currently free (no
// object claims it), in which case the caller must route the page
// through the physical allocator directly.
//
// Precondition: the caller holds the owning object's write lock.
// FreePage acquires the free-page lock itself; callers must not
// already hold it.
func (m *Manager) FreePage(p Page) bool {
	rv := m.reservationFor(p.PhysAddr())
	if rv == nil {
		return false
	}
	m.locks.lock(rv.tableIndex)
	defer m.locks.unlock(rv.tableIndex)
	if rv.object == nil {
		return false
	}
	m.freeMu.Lock()
	defer m.freeMu.Unlock()
	i := int((p.PhysAddr() - rv.pages[0].PhysAddr()) >> m.opts.PageShift)
	m.depopulate(rv, i)
	return true
}

// depopulate clears bit i, runs the LRU transition, and — if this was
// the reservation's last allocated page — tears it down entirely,
// returning its (now wholly free) pages to the physical allocator.
//
// Precondition: the caller holds rv's stripe lock and the free-page
// lock; bit i is currently set.
func (m *Manager) depopulate(rv *Reservation, i int) {
	if !rv.popmap.isSet(i) {
		panic("reserv: depopulate on already-clear bit")
	}
	wasFull := rv.popcnt == rv.n
	rv.popmap.clear(i)
	rv.popcnt--
	if wasFull {
		rv.pages[0].SetPsind(0)
	}
	m.updateLRU(rv, depopStep)
	if rv.popcnt == 0 {
		obj := rv.object
		pages := rv.pages
		m.unlinkObject(obj, rv)
		rv.publish(nil, 0)
		rv.pages = nil
		rv.popmap = newPopmap(rv.n)
		m.phys.Free(pages)
		m.freedCount.Add(1)
	}
}

// breakReservation destroys rv, returning its free pages to the
// physical allocator as one or more contiguous runs, optionally
// retaining a single page the caller still owns.
//
// Precondition: the caller holds rv's stripe lock and the free-page
// lock; rv is not in any PARTPOP LRU (the caller has already
// dequeued it, e.g. via dequeueLRU).
func (m *Manager) breakReservation(rv *Reservation, keep Page) {
	obj := rv.object
	if obj != nil {
		m.unlinkObject(obj, rv)
	}
	rv.publish(nil, 0)

	if keep != nil {
		i := int((keep.PhysAddr() - rv.pages[0].PhysAddr()) >> m.opts.PageShift)
		if rv.popmap.isClear(i) {
			rv.popmap.set(i)
			rv.popcnt++
		}
	}

	pages := rv.pages
	rv.popmap.scanRuns(func(begin, end int, set bool) bool {
		if !set {
			m.phys.Free(pages[begin:end])
		}
		return true
	})

	rv.pages = nil
	rv.popcnt = 0
	rv.popmap = newPopmap(rv.n)
	m.brokenCount.Add(1)
}

// BreakAll destroys every reservation belonging to obj, returning
// their free pages to the physical allocator. It implements the
// trylock/drop-lock/relock/re-validate contention pattern required
// because the free-page lock is held across the list walk while each
// reservation's own stripe lock must also be acquired to break it.
//
// Precondition: the caller holds obj's write lock.
func (m *Manager) BreakAll(obj Object) {
	m.freeMu.Lock()
	defer m.freeMu.Unlock()

	for {
		q := m.objLists[obj]
		if q == nil || q.head == nil {
			return
		}
		rv := q.head
		idx := rv.tableIndex

		if m.locks.tryLock(idx) {
			m.dequeueLRU(rv)
			m.breakReservation(rv, nil)
			m.locks.unlock(idx)
			continue
		}

		// Contention: drop the free-page lock, take the stripe lock
		// the slow way, then reacquire and re-validate that the head
		// we're about to process is still the one we locked.
		m.freeMu.Unlock()
		m.locks.lock(idx)
		m.freeMu.Lock()
		q = m.objLists[obj]
		if q == nil || q.head == nil || q.head.tableIndex != idx {
			m.locks.unlock(idx)
			continue
		}
		rv = q.head
		m.dequeueLRU(rv)
		m.breakReservation(rv, nil)
		m.locks.unlock(idx)
	}
}

// ReclaimInactive breaks the LRU head of the INACTIVE queue (falling
// back to the oldest non-MARKER entry of ACTIVE if INACTIVE is
// empty), returning its free pages to the physical allocator. It
// returns false if there is nothing to reclaim.
//
// ReclaimInactive acquires and releases the free-page lock itself;
// callers must not already hold it.
func (m *Manager) ReclaimInactive() bool {
	m.freeMu.Lock()

	rv := m.inactive.head
	if rv == nil {
		for rv = m.active.head; rv != nil && rv.isMarker(); rv = rv.lruNext {
		}
	}
	if rv == nil {
		m.freeMu.Unlock()
		return false
	}
	idx := rv.tableIndex

	if !m.locks.tryLock(idx) {
		m.freeMu.Unlock()
		m.locks.lock(idx)
		m.freeMu.Lock()
		if rv.flags&(flagActive|flagInactive) == 0 {
			m.locks.unlock(idx)
			m.freeMu.Unlock()
			return false
		}
	}

	m.dequeueLRU(rv)
	m.breakReservation(rv, nil)
	m.reclaimedCount.Add(1)
	m.locks.unlock(idx)
	m.freeMu.Unlock()
	return true
}

// ReclaimContig looks for an INACTIVE reservation holding a free run
// of npages satisfying the given constraints and, if found, breaks it
// so the physical allocator can satisfy a subsequent contiguous
// request from the newly freed space. It is a latent capability: the
// original kept the equivalent path compiled in behind an
// always-firing assertion, and callers may instead rely on their own
// retry strategy. It is a no-op unless Options.EnableReclaimContig is
// set (see DESIGN.md Open Question 2).
func (m *Manager) ReclaimContig(npages int, low, high, alignment, boundary uintptr) bool {
	if !m.opts.EnableReclaimContig {
		return false
	}
	pageSize := uintptr(1) << m.opts.PageShift

	m.freeMu.Lock()
	defer m.freeMu.Unlock()

	for rv := m.inactive.head; rv != nil; rv = rv.lruNext {
		idx := rv.tableIndex
		if !m.locks.tryLock(idx) {
			continue
		}
		if m.reservationHasFreeRun(rv, npages, low, high, alignment, boundary, pageSize) {
			m.dequeueLRU(rv)
			m.breakReservation(rv, nil)
			m.locks.unlock(idx)
			m.reclaimedCount.Add(1)
			return true
		}
		m.locks.unlock(idx)
	}
	return false
}

// reservationHasFreeRun reports whether rv's popmap contains npages
// consecutive clear bits whose physical address satisfies low, high,
// alignment, and boundary. Precondition: the caller holds rv's stripe
// lock.
func (m *Manager) reservationHasFreeRun(rv *Reservation, npages int, low, high, alignment, boundary, pageSize uintptr) bool {
	base := rv.pages[0].PhysAddr()
	if base+uintptr(rv.n)*pageSize <= low || base >= high {
		return false
	}

	start := 0
	if low > base {
		start = int((low - base) / pageSize)
	}

	for start < rv.n {
		zs := rv.popmap.nextZeroFrom(start)
		if zs < 0 {
			return false
		}
		ze := rv.popmap.nextOneFrom(zs)
		if ze < 0 {
			ze = rv.n
		}
		for s := zs; s+npages <= ze; s++ {
			addr := base + uintptr(s)*pageSize
			end := addr + uintptr(npages)*pageSize
			if addr < low || end > high {
				continue
			}
			if addr%alignment != 0 {
				continue
			}
			if boundary != 0 && (addr&^(boundary-1)) != ((end-1)&^(boundary-1)) {
				continue
			}
			return true
		}
		start = ze
	}
	return false
}
