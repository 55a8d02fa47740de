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
	"fmt"
	"sync/atomic"
)

// reservation flags. ACTIVE and INACTIVE are mutually exclusive; a
// reservation carries neither while full or free.
const (
	flagActive = 1 << iota
	flagInactive
	flagMarker
)

// actMax is the saturating ceiling of actcnt (ACT_MAX).
const actMax = 64

// Reservation is the metadata for one superpage speculatively
// allocated to a single memory object. The zero value is not valid;
// reservations live only inside a Manager's table.
type Reservation struct {
	// seq is the optimistic sequence counter guarding (object,
	// pindex): even means stable, odd means a writer is mid-update.
	// It is advanced only by the holder of the reservation's stripe
	// lock (see lockArray.lock).
	seq atomic.Uint32

	object Object
	pindex uint64

	pages []Page // len == n; nil iff this slot is unbacked or free

	popmap popmap
	popcnt int
	actcnt int
	flags  uint8

	n     int // N = 1 << order for this reservation
	order int

	// tableIndex is this slot's index within the Manager's table,
	// fixed at Startup. It determines the reservation's lock stripe.
	tableIndex int

	// objPrev, objNext link this reservation into its object's
	// reservation list (component E). Valid only while object != nil.
	objPrev, objNext *Reservation

	// lruPrev, lruNext link this reservation into the ACTIVE or
	// INACTIVE LRU (component F). Valid only while flagActive or
	// flagInactive is set, or for the MARKER sentinel.
	lruPrev, lruNext *Reservation
}

// beginWrite marks the reservation as mid-update. Caller must hold
// the reservation's stripe lock.
func (r *Reservation) beginWrite() {
	v := r.seq.Load()
	if v&1 != 0 {
		panic(fmt.Sprintf("reserv: beginWrite on reservation already mid-update (seq=%d)", v))
	}
	r.seq.Store(v + 1)
}

// endWrite marks the reservation stable again. Caller must hold the
// reservation's stripe lock and have called beginWrite first.
func (r *Reservation) endWrite() {
	v := r.seq.Load()
	if v&1 == 0 {
		panic(fmt.Sprintf("reserv: endWrite without matching beginWrite (seq=%d)", v))
	}
	r.seq.Store(v + 1)
}

// readSeq returns the current sequence value for an optimistic read.
func (r *Reservation) readSeq() uint32 {
	return r.seq.Load()
}

// seqStable reports whether a read bracketed by before/after snapshots
// observed a stable, consistent state.
func seqStable(before, after uint32) bool {
	return before == after && before&1 == 0
}

// hasPindex reports whether this reservation currently claims
// (object, pindex) such that base-page index i falls within it, using
// the sequence-protected optimistic read described in §4.B. It does
// not require the reservation's stripe lock (callers also use it to
// re-check under that lock); on a torn read it conservatively returns
// false, matching the caller's lock-and-retry fallback.
func (r *Reservation) hasPindex(obj Object, pindex uint64) (i int, ok bool) {
	before := r.readSeq()
	o, base, n := r.object, r.pindex, r.n
	after := r.readSeq()
	if !seqStable(before, after) {
		return 0, false
	}
	if o != obj || pindex < base || pindex >= base+uint64(n) {
		return 0, false
	}
	return int(pindex - base), true
}

// isMarker reports whether this is the persistent LRU clock-hand
// sentinel (§4.F, §9 "Marker sentinel").
func (r *Reservation) isMarker() bool {
	return r.flags&flagMarker != 0
}

// isPartpop reports whether 0 < popcnt < n, the PARTPOP predicate.
func (r *Reservation) isPartpop() bool {
	return r.popcnt > 0 && r.popcnt < r.n
}

// String implements fmt.Stringer in the spirit of the original's
// DB_SHOW_COMMAND(reserv, vm_reserv_print) inspector. It prints the
// object, pindex, popcnt, actcnt and a state derived from the flags;
// the first page is not printed.
func (r *Reservation) String() string {
	state := "free"
	switch {
	case r.flags&flagMarker != 0:
		state = "marker"
	case r.popcnt == r.n:
		state = "full"
	case r.flags&flagActive != 0:
		state = "active"
	case r.flags&flagInactive != 0:
		state = "inactive"
	}
	return fmt.Sprintf("reservation{object=%p pindex=%d popcnt=%d/%d actcnt=%d state=%s}",
		r.object, r.pindex, r.popcnt, r.n, r.actcnt, state)
}
