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
	"unsafe"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

const (
	kInitialCellCnt = 16
	// resize threshold: 3/4 load
	kLoadFactorNum = 3
	kLoadFactorDen = 4
)

var cellSize = int64(unsafe.Sizeof(cell{}))

// NewGroupMap creates a map sized for expected distinct groups.
func NewGroupMap(expected int, typs []types.Type, strategy Strategy, mp *mpool.MPool) (*GroupMap, error) {
	if strategy == nil {
		return nil, moerr.NewInvalidArgNoCtx("group map strategy", nil)
	}
	if len(typs) == 0 {
		return nil, moerr.NewInvalidArgNoCtx("group map key types", typs)
	}
	cellCnt := uint64(kInitialCellCnt)
	for cellCnt*kLoadFactorNum/kLoadFactorDen < uint64(expected) {
		cellCnt <<= 1
	}
	gm := &GroupMap{
		strategy:    strategy,
		typs:        typs,
		cells:       make([]cell, cellCnt),
		cellCntMask: cellCnt - 1,
		maxElemCnt:  cellCnt * kLoadFactorNum / kLoadFactorDen,
		keys:        batch.NewWithSize(len(typs)),
		mp:          mp,
	}
	for i, typ := range typs {
		gm.keys.Vecs[i] = vector.NewVec(typ)
	}
	return gm, nil
}

// GroupCount returns the number of distinct ids assigned so far.
func (gm *GroupMap) GroupCount() uint64 {
	return gm.elemCnt
}

func (gm *GroupMap) Capacity() int {
	return len(gm.cells)
}

// Size returns the estimated memory footprint in bytes.
func (gm *GroupMap) Size() int64 {
	return int64(len(gm.cells))*cellSize + int64(gm.keys.Size())
}

func (gm *GroupMap) Free() {
	if gm.keys != nil {
		gm.keys.Clean(gm.mp)
		gm.keys = nil
	}
	gm.cells = nil
	gm.elemCnt = 0
}

// insertRow maps one key row to its group id, minting a new id for a
// previously unseen key. Ids are dense and never reassigned.
func (gm *GroupMap) insertRow(vecs []*vector.Vector, row int) (uint64, error) {
	if gm.elemCnt >= gm.maxElemCnt {
		if err := gm.resize(); err != nil {
			return 0, err
		}
	}
	h := gm.strategy.Hash(row, vecs)
	idx := h & gm.cellCntMask
	for {
		c := &gm.cells[idx]
		if c.mapped == 0 {
			for i, vec := range gm.keys.Vecs {
				if err := vec.UnionOne(vecs[i], int64(row), gm.mp); err != nil {
					return 0, err
				}
			}
			gm.keys.AddRowCount(1)
			gm.elemCnt++
			c.hash = h
			c.mapped = gm.elemCnt
			return gm.elemCnt - 1, nil
		}
		if c.hash == h && gm.strategy.Equals(row, vecs, int(c.mapped-1), gm.keys.Vecs) {
			return c.mapped - 1, nil
		}
		idx = (idx + 1) & gm.cellCntMask
	}
}

func (gm *GroupMap) resize() error {
	newCnt := uint64(len(gm.cells)) << 1
	newCells := make([]cell, newCnt)
	mask := newCnt - 1
	for _, c := range gm.cells {
		if c.mapped == 0 {
			continue
		}
		idx := c.hash & mask
		for newCells[idx].mapped != 0 {
			idx = (idx + 1) & mask
		}
		newCells[idx] = c
	}
	gm.cells = newCells
	gm.cellCntMask = mask
	gm.maxElemCnt = newCnt * kLoadFactorNum / kLoadFactorDen
	return nil
}

// MarshalBinary serializes the map as its canonical key rows. Replaying
// them in order reproduces identical ids, so no cell state is stored.
func (gm *GroupMap) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = types.AppendUint64(buf, gm.elemCnt)
	keysData, err := gm.keys.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf = types.AppendBytes(buf, keysData)
	return buf, nil
}

// Restore rebuilds the map from a MarshalBinary payload. The map must be
// freshly created and empty.
func (gm *GroupMap) Restore(data []byte) error {
	if gm.elemCnt != 0 {
		return moerr.NewInvalidStateNoCtx("restore into a non-empty group map")
	}
	elemCnt, data, err := types.ReadUint64(data)
	if err != nil {
		return moerr.NewInternalErrorNoCtx("corrupted group map state")
	}
	keysData, _, err := types.ReadBytes(data)
	if err != nil {
		return moerr.NewInternalErrorNoCtx("corrupted group map state")
	}
	saved := new(batch.Batch)
	if err := saved.UnmarshalBinaryWithCopy(keysData, gm.mp); err != nil {
		return err
	}
	defer saved.Clean(gm.mp)
	if uint64(saved.RowCount()) != elemCnt {
		return moerr.NewInternalErrorNoCtx("group map state row count mismatch: %d != %d",
			saved.RowCount(), elemCnt)
	}
	for row := 0; row < saved.RowCount(); row++ {
		id, err := gm.insertRow(saved.Vecs, row)
		if err != nil {
			return err
		}
		if id != uint64(row) {
			return moerr.NewInternalErrorNoCtx("group map replay out of order: id %d at row %d", id, row)
		}
	}
	return nil
}
