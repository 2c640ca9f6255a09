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

package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

func makeTestBatch(t *testing.T, mp *mpool.MPool) *Batch {
	bat := New([]string{"id", "name"})
	ids := vector.NewVec(types.New(types.T_int64))
	require.NoError(t, vector.AppendFixedList(ids, []int64{1, 2, 3}, nil, mp))
	names := vector.NewVec(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(names, []string{"a", "b", "c"}, []bool{false, false, true}, mp))
	bat.SetVector(0, ids)
	bat.SetVector(1, names)
	bat.SetRowCount(3)
	return bat
}

func TestShrink(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeTestBatch(t, mp)

	bat.Shrink([]int64{2, 0})
	require.Equal(t, 2, bat.RowCount())
	require.Equal(t, int64(3), vector.MustFixedCol[int64](bat.Vecs[0])[0])
	require.True(t, bat.Vecs[1].IsNull(0))
	require.Equal(t, "a", bat.Vecs[1].GetStringAt(1))

	bat.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestCleanFollowsRefCount(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeTestBatch(t, mp)

	bat.AddCnt(1)
	bat.Clean(mp)
	require.Greater(t, mp.CurrNB(), int64(0))
	require.Equal(t, int64(1), bat.GetCnt())

	bat.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestMarshalRoundTrip(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeTestBatch(t, mp)

	data, err := bat.MarshalBinary()
	require.NoError(t, err)

	got := new(Batch)
	require.NoError(t, got.UnmarshalBinaryWithCopy(data, mp))
	require.Equal(t, []string{"id", "name"}, got.Attrs)
	require.Equal(t, 3, got.RowCount())
	require.Equal(t, []int64{1, 2, 3}, vector.MustFixedCol[int64](got.Vecs[0]))
	require.Equal(t, "b", got.Vecs[1].GetStringAt(1))
	require.True(t, got.Vecs[1].IsNull(2))

	bat.Clean(mp)
	got.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestEmpty(t *testing.T) {
	var bat *Batch
	require.True(t, bat.IsEmpty())
	require.True(t, NewWithSize(0).IsEmpty())
}
