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

package distinctlimit

import (
	"github.com/colstream/colstream/pkg/common/hashmap"
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/config"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/snapshot"
	"github.com/colstream/colstream/pkg/sql/colexec"
)

const stateVersion = 1

type container struct {
	// the batch currently in flight, at most one at a time
	bat *batch.Batch
	// key vectors of bat, in output order
	keyVecs []*vector.Vector
	// unfinished assignment over bat, nil once resolved
	work colexec.Work[[]uint64]
	// resolved per-row group ids of bat
	groupIDs []uint64

	gm   *hashmap.GroupMap
	sels []int64
}

// DistinctLimit emits the first-seen row of each distinct key until the
// limit is reached, then discards the rest of the input.
type DistinctLimit struct {
	limit        int64
	distinctCols []int32
	hashCol      int32
	outputCols   []int32
	sourceTypes  []types.Type

	strategy      hashmap.Strategy
	capCeiling    int
	snapshotState *snapshot.State
	tag           string

	remaining      uint64
	nextDistinctID uint64
	finishing      bool
	reportedBytes  int64

	ctr container
}

// New validates the configuration and builds the operator. hashCol is
// the channel of precomputed key hashes, or -1.
func New(limit int64, distinctCols []int32, sourceTypes []types.Type, hashCol int32) (*DistinctLimit, error) {
	if limit < 0 {
		return nil, moerr.NewBadConfigNoCtx("limit must be at least zero, got %d", limit)
	}
	if len(distinctCols) == 0 {
		return nil, moerr.NewBadConfigNoCtx("distinct channels must not be empty")
	}
	if len(sourceTypes) == 0 {
		return nil, moerr.NewBadConfigNoCtx("source types must not be empty")
	}
	for _, col := range distinctCols {
		if col < 0 || int(col) >= len(sourceTypes) {
			return nil, moerr.NewBadConfigNoCtx("distinct channel %d out of range [0, %d)",
				col, len(sourceTypes))
		}
	}
	if hashCol != -1 {
		if hashCol < 0 || int(hashCol) >= len(sourceTypes) {
			return nil, moerr.NewBadConfigNoCtx("hash channel %d out of range [0, %d)",
				hashCol, len(sourceTypes))
		}
		if sourceTypes[hashCol].Oid != types.T_uint64 {
			return nil, moerr.NewBadConfigNoCtx("hash channel %d must be %s, got %s",
				hashCol, types.T_uint64.String(), sourceTypes[hashCol].String())
		}
	}

	outputCols := make([]int32, 0, len(distinctCols)+1)
	outputCols = append(outputCols, distinctCols...)
	if hashCol != -1 {
		outputCols = append(outputCols, hashCol)
	}
	return &DistinctLimit{
		limit:        limit,
		distinctCols: distinctCols,
		hashCol:      hashCol,
		outputCols:   outputCols,
		sourceTypes:  sourceTypes,
		capCeiling:   config.DefaultGroupCapacityCeiling,
		tag:          "distinct_limit",
	}, nil
}

// WithStrategy overrides the default key comparison strategy.
func (op *DistinctLimit) WithStrategy(s hashmap.Strategy) *DistinctLimit {
	op.strategy = s
	return op
}

// WithSnapshotState enables marker relay and state capture.
func (op *DistinctLimit) WithSnapshotState(st *snapshot.State) *DistinctLimit {
	op.snapshotState = st
	op.tag = st.Key()
	return op
}

// WithCapacityCeiling overrides the group map seeding cap.
func (op *DistinctLimit) WithCapacityCeiling(n int) *DistinctLimit {
	op.capCeiling = n
	return op
}
