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

// AllocContig allocates npages contiguous base pages starting at
// object index pindex, satisfying alignment/boundary constraints that
// may require spanning more than one reservation. mpred plays the
// same role as in AllocPage.
//
// Precondition: the caller holds obj's write lock. AllocContig
// acquires the free-page lock itself; callers must not already hold
// it.
func (m *Manager) AllocContig(obj Object, pindex uint64, npages int, low, high, alignment, boundary uintptr, mpred Page) (Page, bool) {
	if npages <= 0 {
		return nil, false
	}
	// Is a reservation fundamentally impossible? This bound applies
	// regardless of obj's type, mirroring AllocPage's unconditional
	// pindex >= obj.Size() check.
	if pindex+uint64(npages) > obj.Size() {
		return nil, false
	}

	first := m.superpageBase(pindex)
	indexInRV := int(pindex - first)
	n := m.n
	pageSize := uintptr(1) << m.opts.PageShift
	superpageSize := pageSize << uint(m.opts.Order)

	// Could the specified index within a reservation of the smallest
	// possible size satisfy the alignment and boundary requirements?
	// The first page's offset within its eventual superpage is fixed
	// by pindex; the allocator can only choose the superpage's base
	// address, not shift this offset, so both checks must run
	// regardless of how alignment/boundary compare to superpageSize.
	pa := uintptr(indexInRV) << m.opts.PageShift
	if pa%alignment != 0 {
		return nil, false
	}
	size := uintptr(npages) * pageSize
	if boundary != 0 && (pa&^(boundary-1)) != ((pa+size-1)&^(boundary-1)) {
		return nil, false
	}

	// If a reservation already claims (obj, pindex) — discovered via
	// either neighbor — the whole request must land inside it; no
	// fresh allocation is attempted either way.
	if rv, i, ok := m.existingCovering(obj, pindex, mpred); ok {
		return m.tryContigInExisting(rv, obj, pindex, i, npages, low, high, alignment, boundary, pageSize)
	}

	var leftcap uint64
	haveLeft := mpred != nil
	if haveLeft {
		leftcap = mpred.Index() + 1
		if leftcap > first {
			return nil, false
		}
	}

	var rightcap uint64
	haveRight := false
	if msucc, ok := obj.Successor(pindex); ok {
		rightcap = msucc.Index()
		haveRight = true
	}

	maxpages := roundUp(indexInRV+npages, n)
	// Reservations always cover a full superpage-sized physical span,
	// so unlike a bare byte allocator this implementation always
	// requests the rounded-up size; a request that only fits the
	// unrounded minimum fails outright rather than allocating a
	// partial final reservation.
	if haveRight && first+uint64(maxpages) > rightcap {
		return nil, false
	}

	// Would the last new reservation extend past the end of the
	// object? A vnode-backed object cannot be speculatively reserved
	// past its current size; a non-vnode object may be, since it's
	// expected to grow.
	if first+uint64(maxpages) > obj.Size() && obj.IsVnodeBacked() {
		return nil, false
	}

	effAlignment := alignment
	if effAlignment < superpageSize {
		effAlignment = superpageSize
	}
	var effBoundary uintptr
	if boundary > superpageSize {
		effBoundary = boundary
	}

	pages, ok := m.phys.Alloc(maxpages, low, high, effAlignment, effBoundary)
	if !ok {
		return nil, false
	}
	return m.initContigRun(obj, first, pindex, npages, pages), true
}

// existingCovering looks for a reservation, reachable from either
// mpred or the object's successor to pindex, that currently claims
// (obj, pindex).
func (m *Manager) existingCovering(obj Object, pindex uint64, mpred Page) (*Reservation, int, bool) {
	if mpred != nil {
		if rv := m.reservationFor(mpred.PhysAddr()); rv != nil {
			if i, ok := rv.hasPindex(obj, pindex); ok {
				return rv, i, true
			}
		}
	}
	if msucc, ok := obj.Successor(pindex); ok {
		if rv := m.reservationFor(msucc.PhysAddr()); rv != nil {
			if i, ok := rv.hasPindex(obj, pindex); ok {
				return rv, i, true
			}
		}
	}
	return nil, 0, false
}

// tryContigInExisting attempts to satisfy the whole request from
// within a single already-claiming reservation, without allocating
// anything fresh.
func (m *Manager) tryContigInExisting(rv *Reservation, obj Object, pindex uint64, i, npages int, low, high, alignment, boundary, pageSize uintptr) (Page, bool) {
	m.locks.lock(rv.tableIndex)
	defer m.locks.unlock(rv.tableIndex)

	i2, ok := rv.hasPindex(obj, pindex)
	if !ok || i2 != i {
		return nil, false
	}
	if i+npages > rv.n {
		return nil, false
	}
	addr := rv.pages[i].PhysAddr()
	end := addr + uintptr(npages)*pageSize
	if addr < low || end > high {
		return nil, false
	}
	if addr%alignment != 0 {
		return nil, false
	}
	if boundary != 0 && (addr&^(boundary-1)) != ((end-1)&^(boundary-1)) {
		return nil, false
	}
	for k := i; k < i+npages; k++ {
		if rv.popmap.isSet(k) {
			return nil, false
		}
	}

	m.freeMu.Lock()
	for k := i; k < i+npages; k++ {
		m.populate(rv, k)
	}
	m.freeMu.Unlock()
	return rv.pages[i], true
}

// initContigRun carves pages, a fresh physically contiguous run
// starting at object index first, into one reservation per superpage
// stride, populating exactly the caller's requested [pindex,
// pindex+npages) sub-span and leaving the rest of each reservation
// free for future speculative allocation.
func (m *Manager) initContigRun(obj Object, first uint64, pindex uint64, npages int, pages []Page) Page {
	n := m.n
	lo, hi := pindex, pindex+uint64(npages)
	var result Page

	for off := 0; off < len(pages); off += n {
		rvPages := pages[off : off+n]
		rv := m.reservationFor(rvPages[0].PhysAddr())
		if rv == nil {
			panic("reserv: physical allocator returned an unbacked address")
		}
		rvBase := first + uint64(off)
		rvEnd := rvBase + uint64(n)

		start, end := lo, hi
		if rvBase > start {
			start = rvBase
		}
		if rvEnd < end {
			end = rvEnd
		}
		localStart, localEnd := int(start-rvBase), int(end-rvBase)

		m.locks.lock(rv.tableIndex)
		m.freeMu.Lock()
		m.linkObject(obj, rv)
		rv.publish(obj, rvBase)
		rv.pages = make([]Page, n)
		copy(rv.pages, rvPages)
		for k := localStart; k < localEnd; k++ {
			m.populate(rv, k)
		}
		m.freeMu.Unlock()
		m.locks.unlock(rv.tableIndex)

		if result == nil {
			result = rv.pages[localStart]
		}
	}
	return result
}

func roundUp(x, n int) int {
	return ((x + n - 1) / n) * n
}
