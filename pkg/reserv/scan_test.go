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

	"github.com/markjdb/freebsd-scale-hacks/internal/testfixture"
)

// TestAgerLivenessDemotesWithinBoundedSweeps exercises testable
// property 7: starting from a configuration of k partially populated
// ACTIVE reservations, scanning repeatedly without re-populating any
// of them demotes every one to INACTIVE within ceil(ACT_MAX/DEC)
// sweeps.
func TestAgerLivenessDemotesWithinBoundedSweeps(t *testing.T) {
	const order = 1 // N=2, so each AllocPage call leaves a PARTPOP reservation
	const k = 5
	n := 1 << order
	phys := testfixture.NewPhysAllocator(4096, n*k)
	m := New(phys, Options{Order: order, PageShift: 12})
	high := uintptr(n*k) * 4096
	m.Startup(high, []Segment{{Start: 0, End: high}})
	m.Init()

	obj := testfixture.NewObject(1 << 20)
	for i := 0; i < k; i++ {
		p, ok := m.AllocPage(obj, uint64(i*n), nil)
		require.True(t, ok)
		obj.Insert(uint64(i*n), p)
	}
	require.Equal(t, k, m.Stats().PartialActive)

	maxSweeps := (actMax + actDec - 1) / actDec
	demoted := 0
	for sweep := 0; sweep < maxSweeps && demoted < k; sweep++ {
		demoted += m.Scan(k)
	}
	require.Equal(t, k, demoted, "every reservation must be demoted within ceil(ACT_MAX/DEC) sweeps")
	require.Equal(t, 0, m.Stats().PartialActive)
	require.Equal(t, k, m.Stats().PartialInactive)
}

func TestScanSkipsMarkerAndStopsAtActiveEnd(t *testing.T) {
	m, _, obj := newTestManagerAndObj(1)
	p, ok := m.AllocPage(obj, 0, nil)
	require.True(t, ok)
	obj.Insert(0, p)

	demoted := m.Scan(100) // target far exceeds the single candidate
	require.LessOrEqual(t, demoted, 1)
}
