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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeginEndWritePanicsOnMisuse(t *testing.T) {
	r := &Reservation{n: 1}
	r.beginWrite()
	require.Panics(t, func() { r.beginWrite() })
	r.endWrite()
	require.Panics(t, func() { r.endWrite() })
}

func TestHasPindexAgreesWithPublishedState(t *testing.T) {
	obj := &fakeObject{}
	r := &Reservation{n: 8}
	_, ok := r.hasPindex(obj, 3)
	require.False(t, ok)

	r.publish(obj, 0)
	i, ok := r.hasPindex(obj, 3)
	require.True(t, ok)
	require.Equal(t, 3, i)

	_, ok = r.hasPindex(obj, 8)
	require.False(t, ok, "pindex past the reservation's window is not claimed by it")

	other := &fakeObject{}
	_, ok = r.hasPindex(other, 3)
	require.False(t, ok, "a different object never matches")
}

func TestIsPartpop(t *testing.T) {
	r := &Reservation{n: 4}
	require.False(t, r.isPartpop())
	r.popcnt = 2
	require.True(t, r.isPartpop())
	r.popcnt = 4
	require.False(t, r.isPartpop())
}

// fakeObject is the smallest possible reserv.Object for package-internal
// tests that only need object identity, not residency lookups.
type fakeObject struct{}

func (o *fakeObject) Size() uint64                              { return 1 << 20 }
func (o *fakeObject) IsVnodeBacked() bool                        { return false }
func (o *fakeObject) Successor(pindex uint64) (Page, bool)       { return nil, false }
