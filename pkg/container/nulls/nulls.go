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

// Package nulls tracks the null rows of a vector with a roaring bitmap.
package nulls

import (
	"github.com/RoaringBitmap/roaring"
)

type Nulls struct {
	np *roaring.Bitmap
}

func NewWithSize(_ int) *Nulls {
	return &Nulls{}
}

func (nsp *Nulls) Any() bool {
	return nsp != nil && nsp.np != nil && !nsp.np.IsEmpty()
}

func (nsp *Nulls) Contains(row uint64) bool {
	return nsp != nil && nsp.np != nil && nsp.np.Contains(uint32(row))
}

func (nsp *Nulls) Add(rows ...uint64) {
	if nsp.np == nil {
		nsp.np = roaring.New()
	}
	for _, row := range rows {
		nsp.np.Add(uint32(row))
	}
}

func (nsp *Nulls) Count() int {
	if nsp == nil || nsp.np == nil {
		return 0
	}
	return int(nsp.np.GetCardinality())
}

func (nsp *Nulls) Reset() {
	if nsp.np != nil {
		nsp.np.Clear()
	}
}

func (nsp *Nulls) Dup() *Nulls {
	if nsp == nil || nsp.np == nil {
		return &Nulls{}
	}
	return &Nulls{np: nsp.np.Clone()}
}

// Filter rebuilds the null set for a row projection: row i of the result
// is null iff row sels[i] was null.
func (nsp *Nulls) Filter(sels []int64) *Nulls {
	res := &Nulls{}
	if !nsp.Any() {
		return res
	}
	for i, sel := range sels {
		if nsp.Contains(uint64(sel)) {
			res.Add(uint64(i))
		}
	}
	return res
}

func (nsp *Nulls) MarshalBinary() ([]byte, error) {
	if nsp == nil || nsp.np == nil {
		return nil, nil
	}
	return nsp.np.MarshalBinary()
}

func (nsp *Nulls) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		nsp.np = nil
		return nil
	}
	nsp.np = roaring.New()
	return nsp.np.UnmarshalBinary(data)
}

func (nsp *Nulls) String() string {
	if nsp == nil || nsp.np == nil {
		return "[]"
	}
	return nsp.np.String()
}
