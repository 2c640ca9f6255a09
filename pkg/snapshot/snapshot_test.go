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

package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
)

type fakeStage struct {
	state []byte
}

func (s *fakeStage) Capture() ([]byte, error) {
	return s.state, nil
}

func (s *fakeStage) Restore(state []byte) error {
	s.state = append([]byte(nil), state...)
	return nil
}

func TestMemStoreRoundTrip(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Save(1, "stage_a", []byte("hello")))

	got, err := store.Load(1, "stage_a")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	_, err = store.Load(2, "stage_a")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrFileNotFound))
	_, err = store.Load(1, "stage_b")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrFileNotFound))
	require.NoError(t, store.Close())
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	state := make([]byte, 10000)
	for i := range state {
		state[i] = byte(i % 17)
	}
	require.NoError(t, store.Save(3, "stage_a", state))

	got, err := store.Load(3, "stage_a")
	require.NoError(t, err)
	require.Equal(t, state, got)

	_, err = store.Load(4, "stage_a")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrFileNotFound))
	require.NoError(t, store.Close())
}

func TestMarkerQueueIsOrdered(t *testing.T) {
	st := NewState("stage_a", NewMemStore())
	require.False(t, st.HasMarker())
	require.Nil(t, st.NextMarker())

	st.EnqueueMarker(&Marker{ID: 1, Typ: MarkerSnapshot})
	st.EnqueueMarker(&Marker{ID: 2, Typ: MarkerResume})
	require.True(t, st.HasMarker())

	m := st.NextMarker()
	require.Equal(t, uint64(1), m.ID)
	require.Equal(t, MarkerSnapshot, m.Typ)
	m = st.NextMarker()
	require.Equal(t, uint64(2), m.ID)
	require.False(t, st.HasMarker())
}

func TestSaveLoadState(t *testing.T) {
	store := NewMemStore()
	st := NewState("stage_a", store)

	src := &fakeStage{state: []byte("opaque")}
	require.NoError(t, st.SaveState(&Marker{ID: 5, Typ: MarkerSnapshot}, src))

	dst := &fakeStage{}
	require.NoError(t, st.LoadState(5, dst))
	require.Equal(t, []byte("opaque"), dst.state)

	err := st.LoadState(6, dst)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrFileNotFound))
}

func TestResetDropsPendingMarkers(t *testing.T) {
	st := NewState("stage_a", NewMemStore())
	st.EnqueueMarker(&Marker{ID: 1, Typ: MarkerSnapshot})
	st.Reset()
	require.False(t, st.HasMarker())
}
