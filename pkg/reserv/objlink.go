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

// linkObject adds rv to obj's reservation list. Precondition: the
// caller holds the free-page lock; rv is not already linked to any
// object.
func (m *Manager) linkObject(obj Object, rv *Reservation) {
	q := m.objLists[obj]
	if q == nil {
		q = &objQueue{}
		m.objLists[obj] = q
	}
	q.pushHead(rv)
}

// unlinkObject removes rv from its current object's reservation list.
// Precondition: the caller holds the free-page lock; rv.object is set
// to the object it is currently linked under.
func (m *Manager) unlinkObject(obj Object, rv *Reservation) {
	q := m.objLists[obj]
	if q == nil {
		return
	}
	q.remove(rv)
	if q.head == nil {
		delete(m.objLists, obj)
	}
}

// publish sets (object, pindex) under the sequence-write protocol of
// §4.B. Precondition: the caller holds rv's stripe lock. If obj is
// nil, this is a clearing write (see break) and requires only the
// stripe lock; otherwise it additionally requires obj's write lock,
// held by the caller of the surrounding operation.
func (rv *Reservation) publish(obj Object, pindex uint64) {
	rv.beginWrite()
	rv.object = obj
	rv.pindex = pindex
	rv.endWrite()
}

// Rename relinks p's reservation from oldObj to newObj at newPindex,
// republishing its identity. It is a no-op if p's reservation is not
// currently claimed by oldObj, including when p's address belongs to
// no reservation or to a free one (there is nothing to relink).
//
// Precondition: the caller holds newObj's write lock.
func (m *Manager) Rename(p Page, newObj, oldObj Object, newPindex uint64) {
	rv := m.reservationFor(p.PhysAddr())
	if rv == nil {
		return
	}

	m.locks.lock(rv.tableIndex)
	defer m.locks.unlock(rv.tableIndex)
	if rv.object != oldObj {
		return
	}

	m.freeMu.Lock()
	defer m.freeMu.Unlock()

	m.unlinkObject(oldObj, rv)
	m.linkObject(newObj, rv)
	rv.publish(newObj, newPindex)
}
