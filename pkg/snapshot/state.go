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
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/logutil"
)

// Restorable is implemented by stages that can serialize their state at
// a marker and rebuild it later.
type Restorable interface {
	Capture() ([]byte, error)
	Restore(state []byte) error
}

// State is the per-stage view of the checkpoint subsystem: the queue of
// markers pending relay and the store captured state goes to. Marker
// detection and transport between stages stay outside; markers enter
// through EnqueueMarker.
type State struct {
	key     string
	store   Store
	pending []*Marker
}

func NewState(key string, store Store) *State {
	return &State{key: key, store: store}
}

func (s *State) Key() string {
	return s.key
}

// EnqueueMarker queues a marker for relay ahead of any data output.
func (s *State) EnqueueMarker(m *Marker) {
	s.pending = append(s.pending, m)
}

func (s *State) HasMarker() bool {
	return len(s.pending) > 0
}

// NextMarker pops the oldest pending marker, or nil.
func (s *State) NextMarker() *Marker {
	if len(s.pending) == 0 {
		return nil
	}
	m := s.pending[0]
	s.pending = s.pending[1:]
	return m
}

// SaveState captures r and persists it under the marker's snapshot id.
func (s *State) SaveState(m *Marker, r Restorable) error {
	state, err := r.Capture()
	if err != nil {
		return err
	}
	if err := s.store.Save(m.ID, s.key, state); err != nil {
		return err
	}
	logutil.Debugf("stage %s captured %d state bytes for snapshot %d", s.key, len(state), m.ID)
	return nil
}

// LoadState restores r from the state captured under snapshotID.
func (s *State) LoadState(snapshotID uint64, r Restorable) error {
	state, err := s.store.Load(snapshotID, s.key)
	if err != nil {
		return err
	}
	if err := r.Restore(state); err != nil {
		return moerr.NewInvalidStateNoCtx("restore snapshot %d for stage %s: %v", snapshotID, s.key, err)
	}
	logutil.Debugf("stage %s restored snapshot %d", s.key, snapshotID)
	return nil
}

// Reset drops pending markers, for stage close.
func (s *State) Reset() {
	s.pending = nil
}
