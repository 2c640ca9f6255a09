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
	"bytes"
	"fmt"

	"github.com/colstream/colstream/pkg/common/hashmap"
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/snapshot"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

func (op *DistinctLimit) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("distinct_limit(%d)", op.limit))
}

func (op *DistinctLimit) Prepare(proc *process.Process) error {
	if op.ctr.gm != nil {
		return nil
	}
	keyTypes := make([]types.Type, 0, len(op.outputCols))
	for _, col := range op.outputCols {
		keyTypes = append(keyTypes, op.sourceTypes[col])
	}
	if op.strategy == nil {
		hashIdx := -1
		if op.hashCol != -1 {
			hashIdx = len(op.distinctCols)
		}
		op.strategy = hashmap.NewRowStrategy(keyTypes, hashIdx)
	}
	expected := int(op.limit)
	if expected > op.capCeiling {
		expected = op.capCeiling
	}
	gm, err := hashmap.NewGroupMap(expected, keyTypes, op.strategy, proc.Mp())
	if err != nil {
		return err
	}
	op.ctr.gm = gm
	op.ctr.keyVecs = make([]*vector.Vector, len(op.outputCols))
	op.remaining = uint64(op.limit)
	op.updateMemory(proc)
	return nil
}

func (op *DistinctLimit) NeedsInput() bool {
	return !op.finishing && op.remaining > 0 &&
		!op.hasUnfinishedInput() && !op.hasPendingMarker()
}

// AddInput takes ownership of bat and starts key assignment on it. A
// single assignment step runs here so that small batches resolve
// without an extra GetOutput round trip.
func (op *DistinctLimit) AddInput(proc *process.Process, bat *batch.Batch) error {
	if !op.NeedsInput() {
		return moerr.NewInvalidState(proc.Ctx, "distinct limit does not accept input")
	}
	if bat == nil || bat.IsEmpty() {
		if bat != nil {
			bat.Clean(proc.Mp())
		}
		return nil
	}
	op.ctr.bat = bat
	for i, col := range op.outputCols {
		op.ctr.keyVecs[i] = bat.Vecs[col]
	}
	op.ctr.work = op.ctr.gm.Assign(op.ctr.keyVecs, bat.RowCount())
	done, err := op.ctr.work.Process()
	if err != nil {
		return err
	}
	if done {
		op.ctr.groupIDs = op.ctr.work.Result()
		op.ctr.work = nil
	}
	op.updateMemory(proc)
	return nil
}

func (op *DistinctLimit) GetOutput(proc *process.Process) (vm.Output, error) {
	if op.snapshotState != nil && !op.hasUnfinishedInput() {
		if m := op.snapshotState.NextMarker(); m != nil {
			if m.Typ == snapshot.MarkerSnapshot {
				if err := op.snapshotState.SaveState(m, op); err != nil {
					return vm.NoOutput(), err
				}
			}
			return vm.MarkerOutput(m), nil
		}
	}
	if op.ctr.work != nil {
		done, err := op.ctr.work.Process()
		if err != nil {
			return vm.NoOutput(), err
		}
		op.updateMemory(proc)
		if !done {
			return vm.NoOutput(), nil
		}
		op.ctr.groupIDs = op.ctr.work.Result()
		op.ctr.work = nil
	}
	if op.ctr.groupIDs == nil {
		return vm.NoOutput(), nil
	}
	if op.ctr.bat == nil {
		return vm.NoOutput(), moerr.NewInternalError(proc.Ctx,
			"group ids resolved without a held batch")
	}

	op.ctr.sels = op.ctr.sels[:0]
	for pos, id := range op.ctr.groupIDs {
		if id == op.nextDistinctID {
			op.ctr.sels = append(op.ctr.sels, int64(pos))
			op.nextDistinctID++
			op.remaining--
			if op.remaining == 0 {
				break
			}
		}
	}

	var rbat *batch.Batch
	if len(op.ctr.sels) > 0 {
		rbat = batch.NewWithSize(len(op.outputCols))
		for i, col := range op.outputCols {
			vec := vector.NewVec(*op.ctr.bat.Vecs[col].GetType())
			if err := vec.Union(op.ctr.bat.Vecs[col], op.ctr.sels, proc.Mp()); err != nil {
				vec.Free(proc.Mp())
				rbat.Clean(proc.Mp())
				return vm.NoOutput(), err
			}
			rbat.SetVector(int32(i), vec)
		}
		rbat.SetRowCount(len(op.ctr.sels))
	}

	op.ctr.groupIDs = nil
	op.ctr.bat.Clean(proc.Mp())
	op.ctr.bat = nil
	op.updateMemory(proc)

	if rbat == nil {
		return vm.NoOutput(), nil
	}
	return vm.BatchOutput(rbat), nil
}

func (op *DistinctLimit) Finish() {
	op.finishing = true
}

func (op *DistinctLimit) IsFinished() bool {
	if op.hasPendingMarker() {
		return false
	}
	return !op.hasUnfinishedInput() && (op.finishing || op.remaining == 0)
}

func (op *DistinctLimit) Free(proc *process.Process, pipelineFailed bool, err error) {
	if op.ctr.bat != nil {
		op.ctr.bat.Clean(proc.Mp())
		op.ctr.bat = nil
	}
	op.ctr.work = nil
	op.ctr.groupIDs = nil
	op.ctr.keyVecs = nil
	if op.ctr.gm != nil {
		op.ctr.gm.Free()
		op.ctr.gm = nil
	}
	if op.snapshotState != nil {
		op.snapshotState.Reset()
	}
	proc.Acct().Release(op.tag)
}

// GetCapacity reports the current cell count of the group map.
func (op *DistinctLimit) GetCapacity() int {
	if op.ctr.gm == nil {
		return 0
	}
	return op.ctr.gm.Capacity()
}

// GroupCount reports how many distinct keys have been observed.
func (op *DistinctLimit) GroupCount() uint64 {
	if op.ctr.gm == nil {
		return 0
	}
	return op.ctr.gm.GroupCount()
}

// ReportedBytes is the memory footprint last published to the accountant.
func (op *DistinctLimit) ReportedBytes() int64 {
	return op.reportedBytes
}

// Capture serializes the operator state: counters and the group map.
// A batch in flight is never part of a snapshot; GetOutput holds
// markers back until the current batch has drained, so capture only
// runs at quiescent points.
func (op *DistinctLimit) Capture() ([]byte, error) {
	if op.ctr.gm == nil {
		return nil, moerr.NewInvalidStateNoCtx("capture before prepare")
	}
	if op.hasUnfinishedInput() {
		return nil, moerr.NewInvalidStateNoCtx("capture with a batch in flight")
	}
	var buf []byte
	buf = append(buf, stateVersion)
	buf = types.AppendUint64(buf, op.remaining)
	buf = types.AppendUint64(buf, op.nextDistinctID)
	buf = types.AppendBool(buf, op.finishing)
	buf = types.AppendUint64(buf, uint64(op.reportedBytes))
	gmData, err := op.ctr.gm.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf = types.AppendBytes(buf, gmData)
	buf = types.AppendBool(buf, op.ctr.groupIDs != nil)
	if op.ctr.groupIDs != nil {
		buf = types.AppendUint32(buf, uint32(len(op.ctr.groupIDs)))
		buf = append(buf, types.EncodeSlice(op.ctr.groupIDs)...)
	}
	return buf, nil
}

// Restore loads a captured state into a prepared, unused operator.
func (op *DistinctLimit) Restore(data []byte) error {
	if op.ctr.gm == nil {
		return moerr.NewInvalidStateNoCtx("restore before prepare")
	}
	if op.hasUnfinishedInput() || op.nextDistinctID != 0 || op.ctr.gm.GroupCount() != 0 {
		return moerr.NewInvalidStateNoCtx("restore into a used distinct limit")
	}
	if len(data) == 0 || data[0] != stateVersion {
		return moerr.NewInvalidStateNoCtx("incompatible distinct limit state")
	}
	data = data[1:]

	remaining, data, err := types.ReadUint64(data)
	if err != nil {
		return err
	}
	nextID, data, err := types.ReadUint64(data)
	if err != nil {
		return err
	}
	finishing, data, err := types.ReadBool(data)
	if err != nil {
		return err
	}
	reported, data, err := types.ReadUint64(data)
	if err != nil {
		return err
	}
	gmData, data, err := types.ReadBytes(data)
	if err != nil {
		return err
	}
	if err := op.ctr.gm.Restore(gmData); err != nil {
		return err
	}
	hasIDs, data, err := types.ReadBool(data)
	if err != nil {
		return err
	}
	if hasIDs {
		n, rest, err := types.ReadUint32(data)
		if err != nil {
			return err
		}
		if uint64(len(rest)) < uint64(n)*8 {
			return moerr.NewUnexpectedEOFNoCtx("distinct limit state")
		}
		ids := make([]uint64, n)
		copy(ids, types.DecodeSlice[uint64](rest[:n*8]))
		op.ctr.groupIDs = ids
	}
	if nextID > op.ctr.gm.GroupCount() {
		return moerr.NewInvalidStateNoCtx(
			"distinct limit state emitted more ids than the group map holds")
	}
	op.remaining = remaining
	op.nextDistinctID = nextID
	op.finishing = finishing
	op.reportedBytes = int64(reported)
	return nil
}

func (op *DistinctLimit) hasUnfinishedInput() bool {
	return op.ctr.bat != nil || op.ctr.work != nil
}

func (op *DistinctLimit) hasPendingMarker() bool {
	return op.snapshotState != nil && op.snapshotState.HasMarker()
}

func (op *DistinctLimit) updateMemory(proc *process.Process) bool {
	op.reportedBytes = op.ctr.gm.Size()
	proc.Acct().ReportBytes(op.tag, op.reportedBytes)
	return proc.Acct().IsSatisfied()
}

var _ vm.Operator = new(DistinctLimit)
var _ snapshot.Restorable = new(DistinctLimit)
