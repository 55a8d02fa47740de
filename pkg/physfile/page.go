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

// Page is a handle to one page of a File's arena. It implements
// reserv.Page. Index is set by whichever Object the page is currently
// resident in and psind by the reservation manager; File sets neither.
type Page struct {
	addr  uintptr
	index uint64
	psind int32
}

func (p *Page) PhysAddr() uintptr { return p.addr }

func (p *Page) Index() uint64 { return p.index }

// SetIndex records the page's offset within its owning object. Called
// by an Object implementation when the page is inserted or removed,
// not by the reservation manager.
func (p *Page) SetIndex(i uint64) { p.index = i }

func (p *Page) SetPsind(order int) { p.psind = int32(order) }

// Psind returns the last value set by SetPsind.
func (p *Page) Psind() int { return int(p.psind) }
