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

package vm

import (
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/vm/process"
)

// Drive runs one operator over a fixed input sequence and collects its
// outputs in order. It is the minimal single-stage stand-in for the
// pipeline scheduler: feed while the operator accepts, poll output, and
// declare finish once inputs run out.
func Drive(op Operator, proc *process.Process, inputs []*batch.Batch) (outputs []Output, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(proc.Ctx, e)
		}
	}()

	next := 0
	for !op.IsFinished() {
		if op.NeedsInput() {
			if next < len(inputs) {
				if err = op.AddInput(proc, inputs[next]); err != nil {
					return outputs, err
				}
				next++
			} else {
				op.Finish()
			}
		}
		out, err := op.GetOutput(proc)
		if err != nil {
			return outputs, err
		}
		if out.Kind != OutputNone {
			outputs = append(outputs, out)
		}
	}
	// inputs past the limit are discarded, release them
	for ; next < len(inputs); next++ {
		inputs[next].Clean(proc.Mp())
	}
	return outputs, nil
}
