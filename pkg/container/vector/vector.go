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

package vector

import (
	"fmt"
	"unsafe"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/nulls"
	"github.com/colstream/colstream/pkg/container/types"
)

// Vector represents a column. Fixed-width values live in data as a raw
// slab; varlen values store a varlena header in data and the payload in
// area when it does not fit inline.
type Vector struct {
	typ types.Type
	nsp *nulls.Nulls

	data []byte
	area []byte

	length   int
	capacity int
}

func NewVec(typ types.Type) *Vector {
	return &Vector{
		typ: typ,
		nsp: &nulls.Nulls{},
	}
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) Capacity() int {
	return v.capacity
}

// SetLength truncates the vector to n rows. n must not exceed the
// current length.
func (v *Vector) SetLength(n int) {
	if n > v.length {
		panic(moerr.NewInternalErrorNoCtx("set length %d beyond %d", n, v.length))
	}
	v.length = n
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) IsNull(row uint64) bool {
	return v.nsp.Contains(row)
}

// Size returns the allocated bytes backing the vector.
func (v *Vector) Size() int {
	return len(v.data) + len(v.area)
}

func (v *Vector) Free(mp *mpool.MPool) {
	if v.data != nil {
		mp.Free(v.data)
		v.data = nil
	}
	if v.area != nil {
		mp.Free(v.area[:cap(v.area)])
		v.area = nil
	}
	v.length = 0
	v.capacity = 0
	v.nsp = &nulls.Nulls{}
}

// MustFixedCol returns the fixed-width column slice without a copy.
func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if v.capacity == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&v.data[0])), v.capacity)[:v.length]
}

// GetBytesAt returns the value of a varlen row. The result aliases the
// vector's storage.
func (v *Vector) GetBytesAt(i int) []byte {
	col := MustFixedCol[types.Varlena](v)
	return col[i].GetByteSlice(v.area)
}

func (v *Vector) GetStringAt(i int) string {
	return string(v.GetBytesAt(i))
}

// GetRawBytesAt returns the raw fixed-width bytes of row i.
func (v *Vector) GetRawBytesAt(i int) []byte {
	sz := v.typ.TypeSize()
	return v.data[i*sz : (i+1)*sz]
}

// PreExtend reserves room for rows additional rows.
func (v *Vector) PreExtend(rows int, mp *mpool.MPool) error {
	return extend(v, rows, mp)
}

func extend(v *Vector, rows int, mp *mpool.MPool) error {
	need := v.length + rows
	if need <= v.capacity {
		return nil
	}
	newCap := v.capacity * 2
	if newCap < 16 {
		newCap = 16
	}
	for newCap < need {
		newCap *= 2
	}
	sz := newCap * v.typ.TypeSize()
	data, err := mp.Grow(v.data, sz)
	if err != nil {
		return err
	}
	v.data = data
	v.capacity = newCap
	return nil
}

func extendArea(v *Vector, sz int, mp *mpool.MPool) error {
	need := len(v.area) + sz
	if need <= cap(v.area) {
		return nil
	}
	newCap := cap(v.area) * 2
	if newCap < 64 {
		newCap = 64
	}
	for newCap < need {
		newCap *= 2
	}
	used := len(v.area)
	var old []byte
	if v.area != nil {
		old = v.area[:cap(v.area)]
	}
	area, err := mp.Grow(old, newCap)
	if err != nil {
		return err
	}
	v.area = area[:used]
	return nil
}

// AppendFixed appends one fixed-width value.
func AppendFixed[T types.FixedSizeT](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if v.typ.IsVarlen() {
		return moerr.NewInternalErrorNoCtx("append fixed to %s vector", v.typ.String())
	}
	return appendOneFixed(v, val, isNull, mp)
}

func appendOneFixed[T types.FixedSizeT](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	col := unsafe.Slice((*T)(unsafe.Pointer(&v.data[0])), v.capacity)
	if isNull {
		v.nsp.Add(uint64(v.length))
	} else {
		col[v.length] = val
	}
	v.length++
	return nil
}

// AppendBytes appends one varlen value.
func AppendBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if !v.typ.IsVarlen() {
		return moerr.NewInternalErrorNoCtx("append bytes to %s vector", v.typ.String())
	}
	return appendOneBytes(v, val, isNull, mp)
}

func appendOneBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	col := unsafe.Slice((*types.Varlena)(unsafe.Pointer(&v.data[0])), v.capacity)
	var va types.Varlena
	if isNull {
		v.nsp.Add(uint64(v.length))
	} else if len(val) <= types.VarlenaInlineSize {
		va.SetSmall(val)
	} else {
		if err := extendArea(v, len(val), mp); err != nil {
			return err
		}
		voff := len(v.area)
		v.area = append(v.area, val...)
		va.SetOffsetLen(uint32(voff), uint32(len(val)))
	}
	col[v.length] = va
	v.length++
	return nil
}

func AppendFixedList[T types.FixedSizeT](v *Vector, vals []T, isNulls []bool, mp *mpool.MPool) error {
	if err := extend(v, len(vals), mp); err != nil {
		return err
	}
	for i, val := range vals {
		if err := appendOneFixed(v, val, isNulls != nil && isNulls[i], mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendBytesList(v *Vector, vals [][]byte, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		if err := appendOneBytes(v, val, isNulls != nil && isNulls[i], mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(v *Vector, vals []string, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		if err := appendOneBytes(v, []byte(val), isNulls != nil && isNulls[i], mp); err != nil {
			return err
		}
	}
	return nil
}

// UnionOne appends row sel of w to v. Both vectors must share a type.
func (v *Vector) UnionOne(w *Vector, sel int64, mp *mpool.MPool) error {
	if v.typ.Oid != w.typ.Oid {
		return moerr.NewInternalErrorNoCtx("union %s vector with %s", v.typ.String(), w.typ.String())
	}
	if w.nsp.Contains(uint64(sel)) {
		if v.typ.IsVarlen() {
			return appendOneBytes(v, nil, true, mp)
		}
		return appendNullFixed(v, mp)
	}
	if v.typ.IsVarlen() {
		return appendOneBytes(v, w.GetBytesAt(int(sel)), false, mp)
	}
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	sz := v.typ.TypeSize()
	copy(v.data[v.length*sz:(v.length+1)*sz], w.data[int(sel)*sz:(int(sel)+1)*sz])
	v.length++
	return nil
}

func appendNullFixed(v *Vector, mp *mpool.MPool) error {
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	sz := v.typ.TypeSize()
	for i := v.length * sz; i < (v.length+1)*sz; i++ {
		v.data[i] = 0
	}
	v.nsp.Add(uint64(v.length))
	v.length++
	return nil
}

// Union appends the selected rows of w to v in order.
func (v *Vector) Union(w *Vector, sels []int64, mp *mpool.MPool) error {
	if err := extend(v, len(sels), mp); err != nil {
		return err
	}
	for _, sel := range sels {
		if err := v.UnionOne(w, sel, mp); err != nil {
			return err
		}
	}
	return nil
}

// Shrink keeps only the selected rows, in the given order, in place.
func (v *Vector) Shrink(sels []int64) {
	sz := v.typ.TypeSize()
	for i, sel := range sels {
		copy(v.data[i*sz:(i+1)*sz], v.data[int(sel)*sz:(int(sel)+1)*sz])
	}
	v.nsp = v.nsp.Filter(sels)
	v.length = len(sels)
}

func (v *Vector) Dup(mp *mpool.MPool) (*Vector, error) {
	w := NewVec(v.typ)
	if v.length == 0 {
		return w, nil
	}
	sz := v.length * v.typ.TypeSize()
	data, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(data, v.data[:sz])
	w.data = data
	w.length = v.length
	w.capacity = v.length
	if len(v.area) > 0 {
		area, err := mp.Alloc(len(v.area))
		if err != nil {
			w.Free(mp)
			return nil, err
		}
		copy(area, v.area)
		w.area = area
	}
	w.nsp = v.nsp.Dup()
	return w, nil
}

func (v *Vector) String() string {
	return fmt.Sprintf("%s[%d]", v.typ.String(), v.length)
}

func (v *Vector) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = append(buf, types.EncodeType(&v.typ)...)
	buf = types.AppendUint32(buf, uint32(v.length))
	buf = types.AppendBytes(buf, v.data[:v.length*v.typ.TypeSize()])
	buf = types.AppendBytes(buf, v.area)
	nspData, err := v.nsp.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf = types.AppendBytes(buf, nspData)
	return buf, nil
}

// UnmarshalBinaryWithMpool decodes a vector, copying its storage into mp.
func (v *Vector) UnmarshalBinaryWithMpool(data []byte, mp *mpool.MPool) error {
	typ, data, err := types.DecodeTypeFrom(data)
	if err != nil {
		return err
	}
	length, data, err := types.ReadUint32(data)
	if err != nil {
		return err
	}
	colData, data, err := types.ReadBytes(data)
	if err != nil {
		return err
	}
	areaData, data, err := types.ReadBytes(data)
	if err != nil {
		return err
	}
	nspData, _, err := types.ReadBytes(data)
	if err != nil {
		return err
	}

	v.typ = typ
	v.length = int(length)
	v.capacity = int(length)
	v.data = nil
	v.area = nil
	if len(colData) > 0 {
		if v.data, err = mp.Alloc(len(colData)); err != nil {
			return err
		}
		copy(v.data, colData)
	}
	if len(areaData) > 0 {
		var area []byte
		if area, err = mp.Alloc(len(areaData)); err != nil {
			v.Free(mp)
			return err
		}
		copy(area, areaData)
		v.area = area
	}
	v.nsp = &nulls.Nulls{}
	if err = v.nsp.UnmarshalBinary(nspData); err != nil {
		v.Free(mp)
		return err
	}
	return nil
}
