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

package testutil

import (
	"context"

	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/vm/process"
)

// NewProc returns a process backed by an unlimited test pool.
func NewProc() *process.Process {
	return process.New(context.Background(), mpool.MustNewZero())
}

// NewProcWithLimit returns a process whose accountant enforces limit bytes.
func NewProcWithLimit(limit int64) *process.Process {
	return process.NewWithAccountant(context.Background(), mpool.MustNewZero(),
		process.NewMemoryAccountant(limit))
}

// MakeFixedVector builds a fixed-width vector from vs. Positions listed
// in nullPos are set null; the value at those positions is ignored.
func MakeFixedVector[T types.FixedSizeT](typ types.Type, vs []T, nullPos []int, mp *mpool.MPool) *vector.Vector {
	nulls := make(map[int]bool, len(nullPos))
	for _, p := range nullPos {
		nulls[p] = true
	}
	vec := vector.NewVec(typ)
	for i, v := range vs {
		if err := vector.AppendFixed(vec, v, nulls[i], mp); err != nil {
			panic(err)
		}
	}
	return vec
}

// MakeInt64Vector builds a bigint vector without nulls.
func MakeInt64Vector(vs []int64, mp *mpool.MPool) *vector.Vector {
	return MakeFixedVector(types.New(types.T_int64), vs, nil, mp)
}

// MakeUint64Vector builds an unsigned bigint vector without nulls.
func MakeUint64Vector(vs []uint64, mp *mpool.MPool) *vector.Vector {
	return MakeFixedVector(types.New(types.T_uint64), vs, nil, mp)
}

// MakeVarcharVector builds a varchar vector. Positions listed in
// nullPos are set null.
func MakeVarcharVector(vs []string, nullPos []int, mp *mpool.MPool) *vector.Vector {
	nulls := make(map[int]bool, len(nullPos))
	for _, p := range nullPos {
		nulls[p] = true
	}
	vec := vector.NewVec(types.New(types.T_varchar))
	for i, v := range vs {
		if err := vector.AppendBytes(vec, []byte(v), nulls[i], mp); err != nil {
			panic(err)
		}
	}
	return vec
}

// MakeBatch wraps vecs in a batch. All vectors must have equal length.
func MakeBatch(vecs ...*vector.Vector) *batch.Batch {
	bat := batch.NewWithSize(len(vecs))
	for i, vec := range vecs {
		bat.SetVector(int32(i), vec)
	}
	if len(vecs) > 0 {
		bat.SetRowCount(vecs[0].Length())
	}
	return bat
}
