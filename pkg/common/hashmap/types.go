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

// Package hashmap assigns stable group ids to distinct key rows.
package hashmap

import (
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// UnitLimit is the number of rows handled per resumption step.
const UnitLimit = 256

// Strategy supplies key hashing and equality. Implementations compare a
// candidate row of one batch against the canonical row of another, so
// the map itself stays agnostic to key types.
type Strategy interface {
	// Hash returns the hash of row's key in vecs.
	Hash(row int, vecs []*vector.Vector) uint64
	// Equals reports whether row rowA of vecsA and row rowB of vecsB
	// carry equal keys.
	Equals(rowA int, vecsA []*vector.Vector, rowB int, vecsB []*vector.Vector) bool
}

type cell struct {
	hash   uint64
	mapped uint64 // group id + 1, 0 means empty
}

// GroupMap maps key rows to dense group ids in first-seen order.
// The first-seen row of every group is retained in keys so Strategy can
// compare candidates against it across input batches.
type GroupMap struct {
	strategy Strategy
	typs     []types.Type

	cells       []cell
	cellCntMask uint64
	elemCnt     uint64
	maxElemCnt  uint64

	keys *batch.Batch
	mp   *mpool.MPool
}
