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

package physfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

func newTestFile(chunkPages int) *File {
	return New(Options{PageSize: testPageSize, ChunkSize: uintptr(chunkPages) * testPageSize})
}

func TestAllocGrowsArenaOnDemand(t *testing.T) {
	f := newTestFile(4)
	defer f.Close()

	require.Equal(t, uintptr(0), f.TotalSize())

	pages, ok := f.Alloc(2, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	require.Len(t, pages, 2)
	require.Equal(t, uintptr(4)*testPageSize, f.TotalSize(), "one chunk was mapped even though only 2 pages were requested")

	for i, p := range pages {
		require.Equal(t, uintptr(i)*testPageSize, p.PhysAddr())
	}
}

func TestAllocReturnsContiguousAddresses(t *testing.T) {
	f := newTestFile(8)
	defer f.Close()

	pages, ok := f.Alloc(5, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	require.Len(t, pages, 5)
	for i := 1; i < len(pages); i++ {
		require.Equal(t, pages[i-1].PhysAddr()+testPageSize, pages[i].PhysAddr())
	}
}

func TestFreeReturnsPagesForReuse(t *testing.T) {
	f := newTestFile(4)
	defer f.Close()

	pages, ok := f.Alloc(4, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	before := f.TotalSize()

	f.Free(pages)

	again, ok := f.Alloc(4, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	require.Equal(t, before, f.TotalSize(), "freed space was reused instead of growing a new chunk")
	require.Equal(t, pages[0].PhysAddr(), again[0].PhysAddr())
}

func TestFreeMergesAdjacentRanges(t *testing.T) {
	f := newTestFile(8)
	defer f.Close()

	a, ok := f.Alloc(2, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	b, ok := f.Alloc(2, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)

	f.Free(a)
	f.Free(b)

	// The two freed 2-page runs, now adjacent in the free list, must
	// have merged into one 4-page run able to satisfy a single request
	// without growing.
	before := f.TotalSize()
	run, ok := f.Alloc(4, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	require.Len(t, run, 4)
	require.Equal(t, before, f.TotalSize())
	require.Equal(t, a[0].PhysAddr(), run[0].PhysAddr())
}

func TestAllocHonorsAlignment(t *testing.T) {
	f := newTestFile(8)
	defer f.Close()

	// Force a one-page offset so the natural free-list head is
	// misaligned for a 4-page alignment request.
	_, ok := f.Alloc(1, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)

	alignment := uintptr(4) * testPageSize
	pages, ok := f.Alloc(2, 0, ^uintptr(0), alignment, 0)
	require.True(t, ok)
	require.Zero(t, pages[0].PhysAddr()%alignment)
}

func TestAllocHonorsBoundary(t *testing.T) {
	f := newTestFile(8)
	defer f.Close()

	_, ok := f.Alloc(3, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)

	boundary := uintptr(4) * testPageSize
	pages, ok := f.Alloc(2, 0, ^uintptr(0), 0, boundary)
	require.True(t, ok)

	start := pages[0].PhysAddr()
	end := start + uintptr(len(pages))*testPageSize - 1
	require.Equal(t, start&^(boundary-1), end&^(boundary-1), "the run must not cross a boundary multiple")
}

func TestAllocHonorsHighLimit(t *testing.T) {
	f := newTestFile(4)
	defer f.Close()

	// high caps growth below what's needed to satisfy the request, so
	// Alloc must fail rather than mapping another chunk past it.
	_, ok := f.Alloc(8, 0, uintptr(2)*testPageSize, 0, 0)
	require.False(t, ok)
}

func TestCloseUnmapsAllChunks(t *testing.T) {
	f := newTestFile(4)
	_, ok := f.Alloc(4, 0, ^uintptr(0), 0, 0)
	require.True(t, ok)
	require.NoError(t, f.Close())
	require.Equal(t, uintptr(0), f.TotalSize())
}
