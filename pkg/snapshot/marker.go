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

// Package snapshot implements checkpoint markers and the stores that
// hold captured operator state.
package snapshot

import "fmt"

type MarkerType uint8

const (
	// MarkerSnapshot asks every stage it passes to capture its state.
	MarkerSnapshot MarkerType = iota
	// MarkerResume delimits the replay point after a restore.
	MarkerResume
)

// Marker is an out-of-band signal delimiting a consistent point in the
// data stream. Stages relay markers ahead of data and never mutate them.
type Marker struct {
	ID  uint64
	Typ MarkerType
}

func (m *Marker) String() string {
	switch m.Typ {
	case MarkerSnapshot:
		return fmt.Sprintf("snapshot marker %d", m.ID)
	case MarkerResume:
		return fmt.Sprintf("resume marker %d", m.ID)
	}
	return fmt.Sprintf("unknown marker %d", m.ID)
}
