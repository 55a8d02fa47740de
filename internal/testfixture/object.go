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

// Package testfixture provides deterministic, in-memory stand-ins for
// reserv.Object and reserv.PhysAllocator, used only by pkg/reserv's
// own test suite so it can exercise the manager without depending on
// pkg/physfile's real mmap arena.
package testfixture

import (
	"sort"
	"sync"

	"github.com/markjdb/freebsd-scale-hacks/pkg/reserv"
)

// indexer is implemented by page handles that support recording their
// owning object's index, as physfile.Page and this package's Page do.
type indexer interface {
	SetIndex(uint64)
}

// Object is a minimal in-memory reserv.Object: an ordered map from
// index to resident page.
type Object struct {
	mu     sync.Mutex
	size   uint64
	vnode  bool
	pages  map[uint64]reserv.Page
}

// NewObject returns an Object with the given size, in pages.
func NewObject(size uint64) *Object {
	return &Object{size: size, pages: make(map[uint64]reserv.Page)}
}

func (o *Object) Size() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.size
}

// SetVnodeBacked marks the object as filesystem-vnode-backed, per
// reserv.Object.IsVnodeBacked.
func (o *Object) SetVnodeBacked(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.vnode = v
}

func (o *Object) IsVnodeBacked() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vnode
}

// Insert records that page p now resides at pindex within the object.
func (o *Object) Insert(pindex uint64, p reserv.Page) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ix, ok := p.(indexer); ok {
		ix.SetIndex(pindex)
	}
	o.pages[pindex] = p
}

// Remove drops the page resident at pindex, if any.
func (o *Object) Remove(pindex uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pages, pindex)
}

// Lookup returns the page resident at pindex.
func (o *Object) Lookup(pindex uint64) (reserv.Page, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.pages[pindex]
	return p, ok
}

// Predecessor returns the resident page with the greatest index
// strictly less than pindex, for use as AllocPage/AllocContig's mpred
// argument in tests.
func (o *Object) Predecessor(pindex uint64) (reserv.Page, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var best uint64
	var bestPage reserv.Page
	found := false
	for i, p := range o.pages {
		if i < pindex && (!found || i > best) {
			best, bestPage, found = i, p, true
		}
	}
	return bestPage, found
}

// Successor implements reserv.Object.
func (o *Object) Successor(pindex uint64) (reserv.Page, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	indices := make([]uint64, 0, len(o.pages))
	for i := range o.pages {
		if i > pindex {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, false
	}
	sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })
	return o.pages[indices[0]], true
}

// Len returns the number of resident pages, for test assertions.
func (o *Object) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pages)
}
