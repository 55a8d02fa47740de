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

package testfixture

import (
	"sync"

	"github.com/markjdb/freebsd-scale-hacks/pkg/reserv"
)

// Page is a synthetic physical page: an address within a
// PhysAllocator's fixed arena, with no backing memory at all.
type Page struct {
	addr  uintptr
	index uint64
	psind int32
}

func (p *Page) PhysAddr() uintptr    { return p.addr }
func (p *Page) Index() uint64        { return p.index }
func (p *Page) SetIndex(i uint64)    { p.index = i }
func (p *Page) SetPsind(order int)   { p.psind = int32(order) }
func (p *Page) Psind() int           { return int(p.psind) }

type addrRange struct {
	start, end uintptr
}

// PhysAllocator is a deterministic, fixed-capacity reserv.PhysAllocator
// with no real backing memory: it tracks only which synthetic
// addresses are in use. Its capacity never grows, matching spec.md
// §8 testable property 3's "empty physical allocator of P pages."
type PhysAllocator struct {
	pageSize uintptr

	mu   sync.Mutex
	free []addrRange // sorted by start, pairwise disjoint and non-adjacent
}

// NewPhysAllocator returns a PhysAllocator with totalPages pages of
// pageSize bytes each, all initially free, starting at address 0.
func NewPhysAllocator(pageSize uintptr, totalPages int) *PhysAllocator {
	return &PhysAllocator{
		pageSize: pageSize,
		free:     []addrRange{{0, uintptr(totalPages) * pageSize}},
	}
}

// Alloc implements reserv.PhysAllocator.
func (a *PhysAllocator) Alloc(npages int, low, high, alignment, boundary uintptr) ([]reserv.Page, bool) {
	if alignment == 0 {
		alignment = a.pageSize
	}
	size := uintptr(npages) * a.pageSize

	a.mu.Lock()
	defer a.mu.Unlock()

	start, ok := a.findFreeLocked(size, low, high, alignment, boundary)
	if !ok {
		return nil, false
	}
	a.carveLocked(start, size)

	out := make([]reserv.Page, npages)
	for i := 0; i < npages; i++ {
		out[i] = &Page{addr: start + uintptr(i)*a.pageSize}
	}
	return out, true
}

// Free implements reserv.PhysAllocator.
func (a *PhysAllocator) Free(pages []reserv.Page) {
	if len(pages) == 0 {
		return
	}
	start := pages[0].PhysAddr()
	size := uintptr(len(pages)) * a.pageSize

	a.mu.Lock()
	defer a.mu.Unlock()
	a.addFreeLocked(addrRange{start, start + size})
}

// TotalFree returns the number of currently-free pages, for test
// assertions of round-trip conservation.
func (a *PhysAllocator) TotalFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total uintptr
	for _, r := range a.free {
		total += r.end - r.start
	}
	return int(total / a.pageSize)
}

func (a *PhysAllocator) findFreeLocked(size, low, high, alignment, boundary uintptr) (uintptr, bool) {
	for _, r := range a.free {
		start := r.start
		if start < low {
			start = low
		}
		start = alignUp(start, alignment)
		if start < r.start || start+size > r.end || start+size > high {
			continue
		}
		if boundary != 0 && !withinBoundary(start, size, boundary) {
			nb := alignUp(start+1, boundary)
			nb = alignUp(nb, alignment)
			if nb+size > r.end || nb+size > high || !withinBoundary(nb, size, boundary) {
				continue
			}
			start = nb
		}
		return start, true
	}
	return 0, false
}

func withinBoundary(start, size, boundary uintptr) bool {
	end := start + size - 1
	return (start &^ (boundary - 1)) == (end &^ (boundary - 1))
}

func alignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

func (a *PhysAllocator) carveLocked(start, size uintptr) {
	end := start + size
	out := a.free[:0]
	for _, r := range a.free {
		switch {
		case r.end <= start || r.start >= end:
			out = append(out, r)
		default:
			if r.start < start {
				out = append(out, addrRange{r.start, start})
			}
			if r.end > end {
				out = append(out, addrRange{end, r.end})
			}
		}
	}
	a.free = out
}

func (a *PhysAllocator) addFreeLocked(r addrRange) {
	merged := make([]addrRange, 0, len(a.free)+1)
	inserted := false
	for _, cur := range a.free {
		switch {
		case cur.end < r.start:
			merged = append(merged, cur)
		case r.end < cur.start:
			if !inserted {
				merged = append(merged, r)
				inserted = true
			}
			merged = append(merged, cur)
		default:
			if cur.start < r.start {
				r.start = cur.start
			}
			if cur.end > r.end {
				r.end = cur.end
			}
		}
	}
	if !inserted {
		merged = append(merged, r)
	}
	a.free = merged
}
