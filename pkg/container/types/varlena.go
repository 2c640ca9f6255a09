// Copyright 2023 ColStream
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import "encoding/binary"

const (
	VarlenaSize       = 24
	VarlenaInlineSize = 23
	VarlenaBigHdr     = 0xff
)

// Varlena is the header of a variable length value. Values of up to
// VarlenaInlineSize bytes are stored inline, longer values live in the
// vector's shared area and the header stores offset and length.
type Varlena [VarlenaSize]byte

func (v *Varlena) IsSmall() bool {
	return v[0] != VarlenaBigHdr
}

func (v *Varlena) SetSmall(bs []byte) {
	v[0] = byte(len(bs))
	copy(v[1:], bs)
}

func (v *Varlena) SetOffsetLen(voff, vlen uint32) {
	v[0] = VarlenaBigHdr
	binary.LittleEndian.PutUint32(v[4:8], voff)
	binary.LittleEndian.PutUint32(v[8:12], vlen)
}

func (v *Varlena) OffsetLen() (uint32, uint32) {
	return binary.LittleEndian.Uint32(v[4:8]), binary.LittleEndian.Uint32(v[8:12])
}

func (v *Varlena) ByteSlice() []byte {
	return v[1 : 1+v[0]]
}

// GetByteSlice returns the value bytes, resolving big values in area.
func (v *Varlena) GetByteSlice(area []byte) []byte {
	if v.IsSmall() {
		return v.ByteSlice()
	}
	voff, vlen := v.OffsetLen()
	return area[voff : voff+vlen]
}

func (v *Varlena) Len(area []byte) int {
	if v.IsSmall() {
		return int(v[0])
	}
	_, vlen := v.OffsetLen()
	return int(vlen)
}

func (v *Varlena) Reset() {
	*v = Varlena{}
}
