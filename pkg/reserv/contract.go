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

// Page is a base page, the external VM subsystem's unit of allocation.
// Implementations are owned by the physical allocator and the memory
// object; the manager never constructs one itself.
type Page interface {
	// PhysAddr returns the page's physical address. It never changes
	// for the lifetime of the page.
	PhysAddr() uintptr

	// Index returns the page's offset within its owning object, valid
	// only while the page is resident in that object.
	Index() uint64

	// SetPsind records the pmap promotion hint: order 1 once the
	// page's reservation is fully populated, 0 otherwise. Only
	// pages[0] of a reservation ever receives a nonzero value.
	SetPsind(order int)
}

// Object is a page-cache-like container mapping indices to Pages. Its
// write lock is the reference serialization point for reservations
// that belong to it; the manager assumes that lock is held by the
// caller of every operation that mutates reservation-to-object
// linkage.
//
// Implementations must be valid map keys (comparable by identity);
// callers should pass pointer types.
type Object interface {
	// Size returns the object's size in pages. Allocation requests
	// whose reservation would extend past Size are refused for
	// vnode-backed objects (see IsVnodeBacked).
	Size() uint64

	// IsVnodeBacked reports whether this object, or the object it
	// shadows, is backed by a filesystem vnode. Reservations must
	// never speculate past Size for such objects.
	IsVnodeBacked() bool

	// Successor returns the resident page with the lowest index
	// strictly greater than pindex, if one exists. This stands in for
	// a radix-tree "lookup-ge" query against the object's page index;
	// the manager uses it to find the right neighbor in §4.G/H
	// without maintaining its own copy of the object's contents.
	Successor(pindex uint64) (Page, bool)
}

// PhysAllocator hands out and reclaims physically contiguous runs of
// base pages. It is the sole source of memory the manager clusters
// into reservations.
type PhysAllocator interface {
	// Alloc requests npages contiguous pages satisfying:
	//   low <= start, start+npages*PageSize <= high,
	//   start mod alignment == 0,
	//   [start, start+npages*PageSize) crosses no multiple of boundary
	//     (boundary == 0 means no constraint).
	// Returns the pages in physical-address order and true on
	// success; returns nil, false if no run satisfies the request.
	Alloc(npages int, low, high, alignment, boundary uintptr) ([]Page, bool)

	// Free returns a contiguous run of pages, previously obtained
	// from Alloc (possibly a sub-range of one), to the allocator.
	// Pages must be in physical-address order and contiguous.
	Free(pages []Page)
}

// Segment describes a range of physical addresses backed by RAM,
// as reported by the boot-time memory map.
type Segment struct {
	Start, End uintptr
}
