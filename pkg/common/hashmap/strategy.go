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

package hashmap

import (
	"bytes"

	"github.com/cespare/xxhash/v2"

	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// rowStrategy is the default Strategy: it serializes a row's key columns
// and hashes them with xxhash. When hashIdx is non-negative, vecs[hashIdx]
// carries precomputed uint64 hashes and is excluded from equality.
type rowStrategy struct {
	typs    []types.Type
	hashIdx int
	buf     []byte
}

// NewRowStrategy builds a strategy over the given key column types.
// hashIdx is the position of the precomputed-hash column among the key
// vectors, or -1 when hashes are computed from the key bytes.
func NewRowStrategy(typs []types.Type, hashIdx int) Strategy {
	return &rowStrategy{typs: typs, hashIdx: hashIdx}
}

func (s *rowStrategy) Hash(row int, vecs []*vector.Vector) uint64 {
	if s.hashIdx >= 0 {
		return vector.MustFixedCol[uint64](vecs[s.hashIdx])[row]
	}
	s.buf = s.encodeRow(s.buf[:0], row, vecs)
	return xxhash.Sum64(s.buf)
}

func (s *rowStrategy) Equals(rowA int, vecsA []*vector.Vector, rowB int, vecsB []*vector.Vector) bool {
	for i, typ := range s.typs {
		if i == s.hashIdx {
			continue
		}
		nullA := vecsA[i].IsNull(uint64(rowA))
		nullB := vecsB[i].IsNull(uint64(rowB))
		if nullA != nullB {
			return false
		}
		if nullA {
			// null keys compare equal, one group per null key
			continue
		}
		if typ.IsVarlen() {
			if !bytes.Equal(vecsA[i].GetBytesAt(rowA), vecsB[i].GetBytesAt(rowB)) {
				return false
			}
		} else {
			if !bytes.Equal(vecsA[i].GetRawBytesAt(rowA), vecsB[i].GetRawBytesAt(rowB)) {
				return false
			}
		}
	}
	return true
}

func (s *rowStrategy) encodeRow(buf []byte, row int, vecs []*vector.Vector) []byte {
	for i, typ := range s.typs {
		if i == s.hashIdx {
			continue
		}
		if vecs[i].IsNull(uint64(row)) {
			buf = append(buf, 1)
			continue
		}
		buf = append(buf, 0)
		if typ.IsVarlen() {
			bs := vecs[i].GetBytesAt(row)
			buf = types.AppendUint32(buf, uint32(len(bs)))
			buf = append(buf, bs...)
		} else {
			buf = append(buf, vecs[i].GetRawBytesAt(row)...)
		}
	}
	return buf
}
