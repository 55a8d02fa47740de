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

package reserv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markjdb/freebsd-scale-hacks/internal/testfixture"
)

// TestContigAcrossTwoReservations restores the "Contig across two
// reservations" scenario: npages = N+4, alignment = superpage size.
// The allocator must receive one run of 2N pages (N + roundup(4,N)),
// spread across two freshly initialized reservations, populating all
// N of the first and 4 of the second.
func TestContigAcrossTwoReservations(t *testing.T) {
	const order = 4 // N=16, large enough that 4 < N
	n := 1 << order
	m, phys := newTestManager(order, 3)
	obj := testfixture.NewObject(1 << 20)

	superpageSize := uintptr(n) * testPageSize
	p, ok := m.AllocContig(obj, 0, n+4, 0, ^uintptr(0), superpageSize, 0, nil)
	require.True(t, ok)
	require.Equal(t, uintptr(0), p.PhysAddr())

	st := m.Stats()
	require.Equal(t, 1, st.FullCount, "the first reservation is completely populated")
	require.Equal(t, 1, st.PartialActive, "the second is left 4-of-N populated")
	require.Equal(t, n-4, st.PartialUnusedPages)

	// 2N pages left the allocator; one superpage's worth remains.
	require.Equal(t, n*3-2*n, phys.TotalFree())
}

// TestContigAlignmentAndBoundaryHold restores testable property 4:
// every successful alloc_contig result satisfies pa mod alignment == 0
// and does not cross a boundary multiple.
func TestContigAlignmentAndBoundaryHold(t *testing.T) {
	const order = 3 // N=8
	m, _ := newTestManager(order, 4)
	obj := testfixture.NewObject(1 << 20)

	alignment := uintptr(2) * testPageSize
	boundary := uintptr(4) * testPageSize
	p, ok := m.AllocContig(obj, 0, 3, 0, ^uintptr(0), alignment, boundary, nil)
	require.True(t, ok)

	pa := p.PhysAddr()
	size := uintptr(3) * testPageSize
	require.Zero(t, pa%alignment)
	require.Equal(t, pa&^(boundary-1), (pa+size-1)&^(boundary-1))
}

// TestContigVnodeRefusalPastObjectSize exercises the vnode-gated check
// keyed on the rounded-up reservation's end (first+maxpages), distinct
// from the unconditional pindex+npages > obj.Size() bound: the raw
// request here fits within obj's declared size, but completing the
// final reservation would extend past it, which only a vnode-backed
// object refuses.
func TestContigVnodeRefusalPastObjectSize(t *testing.T) {
	const order = 2 // N=4
	m, _ := newTestManager(order, 1)
	obj := testfixture.NewObject(3)
	obj.SetVnodeBacked(true)

	// pindex=0, npages=2: the raw request (pindex+npages=2) fits
	// within obj.Size()=3, but the rounded-up reservation needs 4
	// pages, whose end (4) exceeds obj.Size().
	_, ok := m.AllocContig(obj, 0, 2, 0, ^uintptr(0), testPageSize, 0, nil)
	require.False(t, ok)
}

// TestContigNonVnodeMaySpeculatePastObjectSize is the non-vnode
// counterpart: the same rounded-up reservation extending past obj's
// declared size is allowed, since a non-vnode object is expected to
// grow to cover it.
func TestContigNonVnodeMaySpeculatePastObjectSize(t *testing.T) {
	const order = 2 // N=4
	m, _ := newTestManager(order, 1)
	obj := testfixture.NewObject(3)

	p, ok := m.AllocContig(obj, 0, 2, 0, ^uintptr(0), testPageSize, 0, nil)
	require.True(t, ok)
	require.Equal(t, uintptr(0), p.PhysAddr())
}

// TestContigUnconditionalSizeBoundAppliesRegardlessOfVnode restores
// the "fundamentally impossible" rejection: pindex+npages exceeding
// obj.Size() is refused even for a non-vnode object, mirroring
// AllocPage's own unconditional precondition on the same object type.
func TestContigUnconditionalSizeBoundAppliesRegardlessOfVnode(t *testing.T) {
	m, _ := newTestManager(2, 1)
	obj := testfixture.NewObject(2)

	_, ok := m.AllocContig(obj, 0, 4, 0, ^uintptr(0), testPageSize, 0, nil)
	require.False(t, ok)
}

// TestContigAlignmentPreCheckCatchesMisalignedIndex restores testable
// property 4 for a nonzero pindex: the eventual physical allocation
// can only guarantee the superpage base is aligned, so a request whose
// offset within its reservation would leave the returned address
// misaligned must be rejected before ever calling the physical
// allocator, not merely validated after the fact.
func TestContigAlignmentPreCheckCatchesMisalignedIndex(t *testing.T) {
	const order = 3 // N=8
	m, _ := newTestManager(order, 2)
	obj := testfixture.NewObject(1 << 20)

	// pindex=3 within a fresh reservation puts the first returned page
	// at byte offset 3*testPageSize into its superpage, which is not a
	// multiple of an 8192-byte alignment request.
	_, ok := m.AllocContig(obj, 3, 2, 0, ^uintptr(0), uintptr(2)*testPageSize, 0, nil)
	require.False(t, ok)
}

func TestContigWithinExistingReservationReusesIt(t *testing.T) {
	const order = 2
	n := 1 << order
	m, phys := newTestManager(order, 2)
	obj := testfixture.NewObject(1 << 20)

	p0, ok := m.AllocPage(obj, 0, nil)
	require.True(t, ok)
	obj.Insert(0, p0)
	free := phys.TotalFree()

	p1, ok := m.AllocContig(obj, 1, n-1, 0, ^uintptr(0), testPageSize, 0, p0)
	require.True(t, ok)
	require.Equal(t, p0.PhysAddr()+testPageSize, p1.PhysAddr())
	require.Equal(t, free, phys.TotalFree(), "no fresh physical allocation was needed")
}
