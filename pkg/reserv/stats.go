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

// Stats is the read-only inspection surface: cumulative counters plus
// a snapshot of the current PARTPOP/full breakdown. It restores what
// the original exposed via sysctl (see DESIGN.md).
type Stats struct {
	Broken    uint64
	Freed     uint64
	Reclaimed uint64

	FullCount           int
	PartialActive       int
	PartialInactive     int
	PartialUnusedPages  int
}

// Stats returns a snapshot of the manager's counters. It walks the
// table, so its cost is proportional to table size. It is also the
// only way to read the three cumulative counters: they are not
// exposed as standalone methods.
func (m *Manager) Stats() Stats {
	m.freeMu.Lock()
	defer m.freeMu.Unlock()

	s := Stats{
		Broken:    m.brokenCount.Load(),
		Freed:     m.freedCount.Load(),
		Reclaimed: m.reclaimedCount.Load(),
	}
	for i := range m.table.entries {
		rv := &m.table.entries[i]
		if !m.table.backed[i] || rv.object == nil {
			continue
		}
		switch {
		case rv.popcnt == rv.n:
			s.FullCount++
		case rv.flags&flagActive != 0:
			s.PartialActive++
			s.PartialUnusedPages += rv.n - rv.popcnt
		case rv.flags&flagInactive != 0:
			s.PartialInactive++
			s.PartialUnusedPages += rv.n - rv.popcnt
		}
	}
	return s
}
