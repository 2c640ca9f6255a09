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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/snapshot"
	"github.com/colstream/colstream/pkg/testutil"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

func int64Types() []types.Type {
	return []types.Type{types.New(types.T_int64)}
}

func newInt64Op(t *testing.T, proc *process.Process, limit int64) *DistinctLimit {
	op, err := New(limit, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	require.NoError(t, op.Prepare(proc))
	return op
}

func drainInt64(t *testing.T, proc *process.Process, outs []vm.Output) []int64 {
	var got []int64
	for _, out := range outs {
		require.Equal(t, vm.OutputBatch, out.Kind)
		got = append(got, vector.MustFixedCol[int64](out.Batch.Vecs[0])...)
		out.Batch.Clean(proc.Mp())
	}
	return got
}

func TestEmitsFirstSeenDistinctRows(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 3)
	in := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{5, 7, 5, 9, 7, 2}, proc.Mp()))

	outs, err := vm.Drive(op, proc, []*batch.Batch{in})
	require.NoError(t, err)
	require.Equal(t, []int64{5, 7, 9}, drainInt64(t, proc, outs))
	require.True(t, op.IsFinished())

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDistinctAcrossBatches(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 10)
	inputs := []*batch.Batch{
		testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2}, proc.Mp())),
		testutil.MakeBatch(testutil.MakeInt64Vector([]int64{2, 3, 1, 4}, proc.Mp())),
	}

	outs, err := vm.Drive(op, proc, inputs)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, drainInt64(t, proc, outs))

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestLimitStopsMidBatch(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 5)
	inputs := []*batch.Batch{
		testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2, 1}, proc.Mp())),
		testutil.MakeBatch(testutil.MakeInt64Vector([]int64{3, 2, 4, 5, 6}, proc.Mp())),
	}

	outs, err := vm.Drive(op, proc, inputs)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, drainInt64(t, proc, outs))
	// the limit ran out before the trailing 6, no finish signal needed
	require.True(t, op.IsFinished())
	require.False(t, op.NeedsInput())

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestLimitZeroFinishesImmediately(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 0)
	require.False(t, op.NeedsInput())
	require.True(t, op.IsFinished())

	in := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2, 3}, proc.Mp()))
	outs, err := vm.Drive(op, proc, []*batch.Batch{in})
	require.NoError(t, err)
	require.Empty(t, outs)

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestNullIsItsOwnGroup(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(3, []int32{0}, []types.Type{types.New(types.T_varchar)}, -1)
	require.NoError(t, err)
	require.NoError(t, op.Prepare(proc))

	vec := testutil.MakeVarcharVector([]string{"a", "", "a", "b", "", "c"}, []int{1, 4}, proc.Mp())
	outs, err := vm.Drive(op, proc, []*batch.Batch{testutil.MakeBatch(vec)})
	require.NoError(t, err)
	require.Len(t, outs, 1)

	out := outs[0].Batch
	require.Equal(t, 3, out.RowCount())
	require.Equal(t, "a", out.Vecs[0].GetStringAt(0))
	require.True(t, out.Vecs[0].IsNull(1))
	require.Equal(t, "b", out.Vecs[0].GetStringAt(2))
	out.Clean(proc.Mp())

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestPrecomputedHashChannel(t *testing.T) {
	proc := testutil.NewProc()
	srcTypes := []types.Type{types.New(types.T_int64), types.New(types.T_uint64)}
	op, err := New(2, []int32{0}, srcTypes, 1)
	require.NoError(t, err)
	require.NoError(t, op.Prepare(proc))

	in := testutil.MakeBatch(
		testutil.MakeInt64Vector([]int64{10, 20, 10, 30}, proc.Mp()),
		testutil.MakeUint64Vector([]uint64{111, 222, 111, 333}, proc.Mp()),
	)
	outs, err := vm.Drive(op, proc, []*batch.Batch{in})
	require.NoError(t, err)
	require.Len(t, outs, 1)

	out := outs[0].Batch
	require.Equal(t, 2, out.VectorCount())
	require.Equal(t, []int64{10, 20}, vector.MustFixedCol[int64](out.Vecs[0]))
	require.Equal(t, []uint64{111, 222}, vector.MustFixedCol[uint64](out.Vecs[1]))
	out.Clean(proc.Mp())

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestAssignmentResumesAcrossCalls(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 50)

	vs := make([]int64, 600)
	for i := range vs {
		vs[i] = int64(i % 50)
	}
	in := testutil.MakeBatch(testutil.MakeInt64Vector(vs, proc.Mp()))

	require.NoError(t, op.AddInput(proc, in))
	require.False(t, op.NeedsInput())
	require.False(t, op.IsFinished())

	// 600 rows take three bounded increments, the first ran in AddInput.
	out, err := op.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputNone, out.Kind)

	out, err = op.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputBatch, out.Kind)
	require.Equal(t, 50, out.Batch.RowCount())
	out.Batch.Clean(proc.Mp())

	require.True(t, op.IsFinished())
	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestRejectsInputWhileBusy(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 10)

	first := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2}, proc.Mp()))
	require.NoError(t, op.AddInput(proc, first))
	require.False(t, op.NeedsInput())

	second := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{3}, proc.Mp()))
	err := op.AddInput(proc, second)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	second.Clean(proc.Mp())

	out, err := op.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputBatch, out.Kind)
	out.Batch.Clean(proc.Mp())

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMarkerRelaysAheadOfData(t *testing.T) {
	proc := testutil.NewProc()
	store := snapshot.NewMemStore()
	st := snapshot.NewState("distinct_limit_1", store)

	op, err := New(10, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	op.WithSnapshotState(st)
	require.NoError(t, op.Prepare(proc))

	st.EnqueueMarker(&snapshot.Marker{ID: 7, Typ: snapshot.MarkerSnapshot})
	require.False(t, op.NeedsInput())
	require.False(t, op.IsFinished())

	out, err := op.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputMarker, out.Kind)
	require.Equal(t, uint64(7), out.Marker.ID)

	state, err := store.Load(7, "distinct_limit_1")
	require.NoError(t, err)
	require.NotEmpty(t, state)
	require.True(t, op.NeedsInput())

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestResumeMarkerSkipsCapture(t *testing.T) {
	proc := testutil.NewProc()
	store := snapshot.NewMemStore()
	st := snapshot.NewState("distinct_limit_1", store)

	op, err := New(10, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	op.WithSnapshotState(st)
	require.NoError(t, op.Prepare(proc))

	st.EnqueueMarker(&snapshot.Marker{ID: 9, Typ: snapshot.MarkerResume})
	out, err := op.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputMarker, out.Kind)

	_, err = store.Load(9, "distinct_limit_1")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrFileNotFound))

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestCaptureRestoreContinuesDeduplication(t *testing.T) {
	proc := testutil.NewProc()
	store := snapshot.NewMemStore()

	st1 := snapshot.NewState("distinct_limit_1", store)
	op1, err := New(5, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	op1.WithSnapshotState(st1)
	require.NoError(t, op1.Prepare(proc))

	first := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2, 1}, proc.Mp()))
	require.NoError(t, op1.AddInput(proc, first))
	out, err := op1.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputBatch, out.Kind)
	require.Equal(t, []int64{1, 2}, vector.MustFixedCol[int64](out.Batch.Vecs[0]))
	out.Batch.Clean(proc.Mp())

	st1.EnqueueMarker(&snapshot.Marker{ID: 1, Typ: snapshot.MarkerSnapshot})
	out, err = op1.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputMarker, out.Kind)
	op1.Free(proc, false, nil)

	// A fresh operator picks up from the captured state.
	st2 := snapshot.NewState("distinct_limit_1", store)
	op2, err := New(5, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	op2.WithSnapshotState(st2)
	require.NoError(t, op2.Prepare(proc))
	require.NoError(t, st2.LoadState(1, op2))
	require.Equal(t, uint64(2), op2.GroupCount())

	second := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{3, 2, 4, 5, 6}, proc.Mp()))
	outs, err := vm.Drive(op2, proc, []*batch.Batch{second})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4, 5}, drainInt64(t, proc, outs))
	require.True(t, op2.IsFinished())

	op2.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMarkerWaitsForHeldBatch(t *testing.T) {
	proc := testutil.NewProc()
	store := snapshot.NewMemStore()

	st1 := snapshot.NewState("distinct_limit_1", store)
	op1, err := New(5, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	op1.WithSnapshotState(st1)
	require.NoError(t, op1.Prepare(proc))

	// The marker lands while the batch is still held; the data must
	// drain before the marker relays and state is captured.
	first := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2, 1}, proc.Mp()))
	require.NoError(t, op1.AddInput(proc, first))
	st1.EnqueueMarker(&snapshot.Marker{ID: 3, Typ: snapshot.MarkerSnapshot})

	out, err := op1.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputBatch, out.Kind)
	require.Equal(t, []int64{1, 2}, vector.MustFixedCol[int64](out.Batch.Vecs[0]))
	out.Batch.Clean(proc.Mp())

	out, err = op1.GetOutput(proc)
	require.NoError(t, err)
	require.Equal(t, vm.OutputMarker, out.Kind)
	require.Equal(t, uint64(3), out.Marker.ID)
	op1.Free(proc, false, nil)

	st2 := snapshot.NewState("distinct_limit_1", store)
	op2, err := New(5, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	op2.WithSnapshotState(st2)
	require.NoError(t, op2.Prepare(proc))
	require.NoError(t, st2.LoadState(3, op2))
	require.Equal(t, uint64(2), op2.GroupCount())

	second := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{3, 2, 4, 5, 6}, proc.Mp()))
	outs, err := vm.Drive(op2, proc, []*batch.Batch{second})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4, 5}, drainInt64(t, proc, outs))

	op2.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestCaptureRejectsHeldBatch(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 5)

	in := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2, 1}, proc.Mp()))
	require.NoError(t, op.AddInput(proc, in))

	_, err := op.Capture()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestRestoreRejectsUsedOperator(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 5)

	state, err := op.Capture()
	require.NoError(t, err)

	in := testutil.MakeBatch(testutil.MakeInt64Vector([]int64{1, 2}, proc.Mp()))
	outs, err := vm.Drive(op, proc, []*batch.Batch{in})
	require.NoError(t, err)
	drainInt64(t, proc, outs)

	err = op.Restore(state)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestRestoreRejectsCorruptState(t *testing.T) {
	proc := testutil.NewProc()
	op := newInt64Op(t, proc, 5)

	err := op.Restore([]byte{0xee, 0x01, 0x02})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMemoryReportingIsMonotonic(t *testing.T) {
	proc := testutil.NewProcWithLimit(1 << 30)
	op := newInt64Op(t, proc, 1000)

	last := op.ReportedBytes()
	require.Greater(t, last, int64(0))
	require.Equal(t, last, proc.Acct().Reserved())

	for i := 0; i < 4; i++ {
		vs := make([]int64, 300)
		for j := range vs {
			vs[j] = int64(i*300 + j)
		}
		in := testutil.MakeBatch(testutil.MakeInt64Vector(vs, proc.Mp()))
		require.True(t, op.NeedsInput())
		require.NoError(t, op.AddInput(proc, in))
		for {
			out, err := op.GetOutput(proc)
			require.NoError(t, err)
			if out.Kind == vm.OutputBatch {
				out.Batch.Clean(proc.Mp())
			}
			if op.NeedsInput() || op.IsFinished() {
				break
			}
		}

		require.GreaterOrEqual(t, op.ReportedBytes(), last)
		last = op.ReportedBytes()
		require.Equal(t, last, proc.Acct().Reserved())
	}

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Acct().Reserved())
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestCapacitySeedingIsCapped(t *testing.T) {
	proc := testutil.NewProc()

	small := newInt64Op(t, proc, 5)
	require.Equal(t, 16, small.GetCapacity())
	small.Free(proc, false, nil)

	big := newInt64Op(t, proc, 1<<20)
	require.Equal(t, 16384, big.GetCapacity())
	big.Free(proc, false, nil)

	capped, err := New(1<<20, []int32{0}, int64Types(), -1)
	require.NoError(t, err)
	capped.WithCapacityCeiling(100)
	require.NoError(t, capped.Prepare(proc))
	require.Equal(t, 256, capped.GetCapacity())
	capped.Free(proc, false, nil)

	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestNewValidatesConfiguration(t *testing.T) {
	srcTypes := []types.Type{types.New(types.T_int64), types.New(types.T_varchar)}
	cases := []struct {
		name    string
		limit   int64
		cols    []int32
		hashCol int32
	}{
		{"negative limit", -1, []int32{0}, -1},
		{"no distinct channels", 5, nil, -1},
		{"channel out of range", 5, []int32{2}, -1},
		{"hash channel out of range", 5, []int32{0}, 7},
		{"hash channel wrong type", 5, []int32{0}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.limit, tc.cols, srcTypes, tc.hashCol)
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
		})
	}
}

func TestMatchesReferenceDeduplication(t *testing.T) {
	proc := testutil.NewProc()
	rng := rand.New(rand.NewSource(42))

	const limit = 25
	op := newInt64Op(t, proc, limit)

	seen := make(map[int64]bool)
	var want []int64
	var inputs []*batch.Batch
	for b := 0; b < 5; b++ {
		vs := make([]int64, 100)
		for i := range vs {
			vs[i] = rng.Int63n(40)
			if len(seen) < limit && !seen[vs[i]] {
				seen[vs[i]] = true
				want = append(want, vs[i])
			}
		}
		inputs = append(inputs, testutil.MakeBatch(testutil.MakeInt64Vector(vs, proc.Mp())))
	}

	outs, err := vm.Drive(op, proc, inputs)
	require.NoError(t, err)
	require.Equal(t, want, drainInt64(t, proc, outs))

	op.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
