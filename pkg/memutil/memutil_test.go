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

package memutil

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMapAlignedPrivateAnonReturnsAlignedAddress(t *testing.T) {
	const size = 64 * 1024
	const align = 16 * 1024

	addr, err := MapAlignedPrivateAnon(size, align, unix.PROT_READ|unix.PROT_WRITE, 0)
	require.NoError(t, err)
	require.Zero(t, addr%align)

	var slice []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&slice))
	hdr.Data = addr
	hdr.Len = size
	hdr.Cap = size

	require.NoError(t, UnmapSlice(slice))
}
