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

// Package physfile provides a reference implementation of
// reserv.PhysAllocator backed by real anonymous memory, grown in
// fixed-size chunks the way pgalloc.MemoryFile grows its backing file.
// Addresses handed out here are offsets into that growable space, not
// host virtual addresses — callers never dereference a Page's
// content through this package, only compare and arithmetic on its
// address, exactly as reserv.Manager does.
package physfile

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/markjdb/freebsd-scale-hacks/pkg/memutil"
	"github.com/markjdb/freebsd-scale-hacks/pkg/reserv"
	"golang.org/x/sys/unix"
)

// Options configures a File.
type Options struct {
	// PageSize is the base page size in bytes.
	PageSize uintptr
	// ChunkSize is the granularity the arena grows by. Must be a
	// multiple of PageSize.
	ChunkSize uintptr
}

type chunkMapping struct {
	fileOffset uintptr
	data       []byte
}

type addrRange struct {
	start, end uintptr
}

// File is a growable arena of anonymously-mapped memory that hands
// out and reclaims page-aligned contiguous runs.
type File struct {
	opts Options

	mu     sync.Mutex
	chunks []chunkMapping
	free   []addrRange // sorted by start, pairwise disjoint and non-adjacent
}

// New constructs an empty File. It holds no memory until the first
// Alloc call grows it.
func New(opts Options) *File {
	if opts.PageSize == 0 || opts.ChunkSize%opts.PageSize != 0 {
		panic(fmt.Sprintf("physfile: invalid Options %+v", opts))
	}
	return &File{opts: opts}
}

// Alloc implements reserv.PhysAllocator.
func (f *File) Alloc(npages int, low, high, alignment, boundary uintptr) ([]reserv.Page, bool) {
	pages, ok := f.alloc(npages, low, high, alignment, boundary)
	if !ok {
		return nil, false
	}
	out := make([]reserv.Page, len(pages))
	for i, p := range pages {
		out[i] = p
	}
	return out, true
}

func (f *File) alloc(npages int, low, high, alignment, boundary uintptr) ([]*Page, bool) {
	if alignment == 0 {
		alignment = f.opts.PageSize
	}
	size := uintptr(npages) * f.opts.PageSize

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if start, ok := f.findFreeLocked(size, low, high, alignment, boundary); ok {
			f.carveLocked(start, size)
			return f.pagesAt(start, npages), true
		}
		if !f.growLocked(high) {
			return nil, false
		}
	}
}

// Free implements reserv.PhysAllocator. pages must be a contiguous,
// address-ordered run previously returned by Alloc (or a contiguous
// sub-range of one).
func (f *File) Free(pages []reserv.Page) {
	if len(pages) == 0 {
		return
	}
	start := pages[0].PhysAddr()
	size := uintptr(len(pages)) * f.opts.PageSize

	f.mu.Lock()
	defer f.mu.Unlock()

	f.addFreeLocked(addrRange{start, start + size})
	f.forEachChunk(start, start+size, func(c *chunkMapping, lo, hi uintptr) {
		unix.Madvise(c.data[lo:hi], unix.MADV_DONTNEED)
	})
}

// findFreeLocked returns the start of a free run of size bytes
// satisfying low/high/alignment/boundary, if one exists.
func (f *File) findFreeLocked(size, low, high, alignment, boundary uintptr) (uintptr, bool) {
	for _, r := range f.free {
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
			if nb+size > r.end || nb+size > high {
				continue
			}
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

// carveLocked removes [start, start+size) from the free list.
func (f *File) carveLocked(start, size uintptr) {
	end := start + size
	out := f.free[:0]
	for _, r := range f.free {
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
	f.free = out
}

// addFreeLocked inserts a range into the free list, merging with
// adjacent ranges.
func (f *File) addFreeLocked(r addrRange) {
	merged := make([]addrRange, 0, len(f.free)+1)
	inserted := false
	for _, cur := range f.free {
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
	f.free = merged
}

// growLocked maps one more chunk, unless doing so would start past
// high (in which case growing cannot help satisfy the in-flight
// request). The host mapping is aligned to ChunkSize. The addresses
// findFreeLocked hands out are arena offsets (chunk i covers
// [i*ChunkSize, (i+1)*ChunkSize)), so their alignment does not depend
// on where the host mapping lands.
func (f *File) growLocked(high uintptr) bool {
	next := uintptr(len(f.chunks)) * f.opts.ChunkSize
	if next >= high {
		return false
	}
	addr, err := memutil.MapAlignedPrivateAnon(f.opts.ChunkSize, f.opts.ChunkSize, unix.PROT_READ|unix.PROT_WRITE, 0)
	if err != nil {
		return false
	}
	var data []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&data))
	hdr.Data = addr
	hdr.Len = int(f.opts.ChunkSize)
	hdr.Cap = int(f.opts.ChunkSize)

	f.chunks = append(f.chunks, chunkMapping{fileOffset: next, data: data})
	f.addFreeLocked(addrRange{next, next + f.opts.ChunkSize})
	return true
}

func (f *File) pagesAt(start uintptr, npages int) []*Page {
	out := make([]*Page, npages)
	for i := 0; i < npages; i++ {
		out[i] = &Page{addr: start + uintptr(i)*f.opts.PageSize}
	}
	return out
}

// forEachChunk invokes fn once per chunk overlapping [start, end),
// with lo/hi expressed relative to that chunk's own mapping.
func (f *File) forEachChunk(start, end uintptr, fn func(c *chunkMapping, lo, hi uintptr)) {
	for start < end {
		idx := start / f.opts.ChunkSize
		if int(idx) >= len(f.chunks) {
			return
		}
		chunkStart := idx * f.opts.ChunkSize
		chunkEnd := chunkStart + f.opts.ChunkSize
		hi := end
		if hi > chunkEnd {
			hi = chunkEnd
		}
		fn(&f.chunks[idx], start-chunkStart, hi-chunkStart)
		start = hi
	}
}

// TotalSize returns the number of bytes currently mapped.
func (f *File) TotalSize() uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uintptr(len(f.chunks)) * f.opts.ChunkSize
}

// Close unmaps every chunk. The File must not be used afterward.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, c := range f.chunks {
		if err := memutil.UnmapSlice(c.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.chunks = nil
	f.free = nil
	return firstErr
}
