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
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/vector"
)

// AssignWork is the resumable group-id assignment over one batch of key
// vectors. Each Process call handles at most UnitLimit rows and picks up
// where the previous call stopped.
type AssignWork struct {
	gm    *GroupMap
	vecs  []*vector.Vector
	count int

	offset int
	ids    []uint64
	done   bool
}

// Assign starts group-id assignment for count rows of vecs. The vectors
// must stay valid until the work completes.
func (gm *GroupMap) Assign(vecs []*vector.Vector, count int) *AssignWork {
	return &AssignWork{
		gm:    gm,
		vecs:  vecs,
		count: count,
		ids:   make([]uint64, 0, count),
	}
}

// Process performs one bounded increment of work. It returns true once
// the result is available.
func (w *AssignWork) Process() (bool, error) {
	if w.done {
		return true, nil
	}
	n := w.count - w.offset
	if n > UnitLimit {
		n = UnitLimit
	}
	for i := 0; i < n; i++ {
		id, err := w.gm.insertRow(w.vecs, w.offset+i)
		if err != nil {
			return false, err
		}
		w.ids = append(w.ids, id)
	}
	w.offset += n
	w.done = w.offset >= w.count
	return w.done, nil
}

// Result returns the per-row group ids. Calling it before Process has
// returned true is a contract violation.
func (w *AssignWork) Result() []uint64 {
	if !w.done {
		panic(moerr.NewInvalidStateNoCtx("assign work result is not ready"))
	}
	return w.ids
}
