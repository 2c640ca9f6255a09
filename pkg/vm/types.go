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
	"bytes"

	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/snapshot"
	"github.com/colstream/colstream/pkg/vm/process"
)

// Operator is a push-style pipeline stage driven by a single scheduler
// loop. The driver feeds batches while NeedsInput holds, polls GetOutput
// until IsFinished, and calls Free exactly once.
type Operator interface {
	// String returns the string representation of an operator.
	String(buf *bytes.Buffer)

	// Prepare does init work before the first input.
	Prepare(proc *process.Process) error

	// NeedsInput reports whether the operator can accept a batch.
	NeedsInput() bool

	// AddInput hands a batch to the operator. Calling it while
	// NeedsInput is false is a contract violation.
	AddInput(proc *process.Process, bat *batch.Batch) error

	// GetOutput produces the next output: a relayed marker, a data
	// batch, or nothing yet.
	GetOutput(proc *process.Process) (Output, error)

	// Finish declares that no more input will arrive.
	Finish()

	// IsFinished reports whether the operator will produce no more
	// output.
	IsFinished() bool

	// Free releases all memory held by the operator.
	// pipelineFailed marks the process status of the pipeline when the
	// method is called.
	Free(proc *process.Process, pipelineFailed bool, err error)
}

type OutputKind int

const (
	// OutputNone means no output this turn, the caller retries later.
	OutputNone OutputKind = iota
	OutputBatch
	OutputMarker
)

// Output is the tagged result of one production call. Markers always
// come out ahead of data.
type Output struct {
	Kind   OutputKind
	Batch  *batch.Batch
	Marker *snapshot.Marker
}

func NoOutput() Output {
	return Output{Kind: OutputNone}
}

func BatchOutput(bat *batch.Batch) Output {
	return Output{Kind: OutputBatch, Batch: bat}
}

func MarkerOutput(m *snapshot.Marker) Output {
	return Output{Kind: OutputMarker, Marker: m}
}
