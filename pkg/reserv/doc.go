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

// Package reserv implements a superpage reservation manager: it
// speculatively clusters base pages allocated to a memory object into
// aligned, physically-contiguous runs ("reservations") so that a pmap
// layer may later promote them into larger page-table mappings.
//
// The manager does not itself allocate physical memory or map
// anything; it sits between a PhysAllocator, which hands out aligned
// runs of base pages, and an Object, which owns pages at particular
// indices. See the package-level contract types in contract.go.
package reserv
