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

// lruQueue is a FIFO over partially-populated reservations (component
// F): ACTIVE or INACTIVE. The tail is most recently touched; the ager
// (component J) walks from head to tail. Callers must hold the
// Manager's free-page lock.
type lruQueue struct {
	head, tail *Reservation
}

func (q *lruQueue) pushTail(r *Reservation) {
	r.lruPrev = q.tail
	r.lruNext = nil
	if q.tail != nil {
		q.tail.lruNext = r
	} else {
		q.head = r
	}
	q.tail = r
}

func (q *lruQueue) pushHead(r *Reservation) {
	r.lruNext = q.head
	r.lruPrev = nil
	if q.head != nil {
		q.head.lruPrev = r
	} else {
		q.tail = r
	}
	q.head = r
}

func (q *lruQueue) remove(r *Reservation) {
	if r.lruPrev != nil {
		r.lruPrev.lruNext = r.lruNext
	} else if q.head == r {
		q.head = r.lruNext
	}
	if r.lruNext != nil {
		r.lruNext.lruPrev = r.lruPrev
	} else if q.tail == r {
		q.tail = r.lruPrev
	}
	r.lruPrev, r.lruNext = nil, nil
}

func (q *lruQueue) empty() bool {
	return q.head == nil
}

// objQueue is the unordered set of reservations belonging to one
// object (component E), implemented as a singly-headed doubly linked
// list so that removal given just a *Reservation is O(1).
type objQueue struct {
	head *Reservation
}

func (q *objQueue) pushHead(r *Reservation) {
	r.objNext = q.head
	r.objPrev = nil
	if q.head != nil {
		q.head.objPrev = r
	}
	q.head = r
}

func (q *objQueue) remove(r *Reservation) {
	if r.objPrev != nil {
		r.objPrev.objNext = r.objNext
	} else if q.head == r {
		q.head = r.objNext
	}
	if r.objNext != nil {
		r.objNext.objPrev = r.objPrev
	}
	r.objPrev, r.objNext = nil, nil
}
