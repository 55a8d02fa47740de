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

import (
	"sync"
	"sync/atomic"

	"github.com/markjdb/freebsd-scale-hacks/pkg/reserv/internal/rlog"
)

// Options configures a Manager. New applies no defaults: each field's
// value, including a zero value, is used as given. New rejects only a
// negative Order.
type Options struct {
	// Order is the reservation order: a reservation spans 1<<Order
	// base pages. Tests may use a small Order; production callers
	// typically use the host's huge-page order.
	Order int

	// PageShift is log2 of the base page size in bytes.
	PageShift uint

	// EnableReclaimContig enables ReclaimContig. The original's
	// equivalent path begins with an always-firing assertion and is
	// treated as unused in production; this defaults to false to
	// match that posture (see DESIGN.md Open Question 2).
	EnableReclaimContig bool
}

// Manager is the superpage reservation manager. The zero value is not
// valid; construct with New and initialize with Startup then Init.
type Manager struct {
	opts Options
	n    int // 1 << opts.Order

	phys PhysAllocator

	table table
	locks lockArray

	// freeMu is the global free-page lock: it protects object
	// reservation lists, the LRU queues, the marker's position, and
	// is the synchronization point against phys.
	freeMu   sync.Mutex
	objLists map[Object]*objQueue
	active   lruQueue
	inactive lruQueue
	marker   Reservation

	brokenCount    atomic.Uint64
	freedCount     atomic.Uint64
	reclaimedCount atomic.Uint64
}

// New constructs a Manager. Callers must still call Startup and Init
// before using it.
func New(phys PhysAllocator, opts Options) *Manager {
	if opts.Order < 0 {
		panic("reserv: negative Order")
	}
	m := &Manager{
		opts:     opts,
		n:        1 << uint(opts.Order),
		phys:     phys,
		objLists: make(map[Object]*objQueue),
	}
	return m
}

// Startup builds the reservation table sized to cover physical
// addresses up to highWater, and marks the slots backed by segments
// as eligible to host a reservation. It returns highWater rounded
// down to a superpage boundary, mirroring the original's vm_reserv_startup
// return value of the new top of usable physical memory; unlike the
// original, this implementation does not carve the table out of
// physical memory itself (see SPEC_FULL.md "Table sizing").
//
// Precondition: boot time, single-threaded.
func (m *Manager) Startup(highWater uintptr, segments []Segment) uintptr {
	shift := m.opts.PageShift + uint(m.opts.Order)
	superpageSize := uintptr(1) << shift
	nslots := int((uintptr(highWater) + superpageSize - 1) >> shift)
	m.table = newTable(nslots, shift)
	for i := range m.table.entries {
		rv := &m.table.entries[i]
		rv.n = m.n
		rv.order = m.opts.Order
		rv.tableIndex = i
		rv.popmap = newPopmap(m.n)
	}
	for _, seg := range segments {
		m.table.markBacked(seg, m.opts.PageShift, uint(m.opts.Order))
	}
	rlog.Infof("table built with %d slots (superpage=%d bytes)", nslots, superpageSize)
	return highWater &^ (superpageSize - 1)
}

// Init installs the persistent MARKER sentinel at the head of the
// ACTIVE LRU, completing component F's setup.
//
// Precondition: boot time, single-threaded, after Startup.
func (m *Manager) Init() {
	m.marker.flags = flagMarker
	m.marker.n = m.n
	m.freeMu.Lock()
	m.active.pushTail(&m.marker)
	m.freeMu.Unlock()
}

// reservationFor returns the table slot for a physical address, or
// nil if the slot is out of range or unbacked.
func (m *Manager) reservationFor(addr uintptr) *Reservation {
	return m.table.at(addr)
}

// superpageBase rounds pindex down to the reservation-aligned base
// offset within an object, i.e. §4.G step 2's `first`.
func (m *Manager) superpageBase(pindex uint64) uint64 {
	return pindex - pindex%uint64(m.n)
}
