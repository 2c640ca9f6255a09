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

// Package process carries the per-pipeline execution context handed to
// every operator call.
package process

import (
	"context"

	"github.com/colstream/colstream/pkg/common/mpool"
)

type Process struct {
	Ctx context.Context

	mp   *mpool.MPool
	acct *MemoryAccountant
}

func New(ctx context.Context, mp *mpool.MPool) *Process {
	return &Process{
		Ctx:  ctx,
		mp:   mp,
		acct: NewMemoryAccountant(0),
	}
}

// NewWithAccountant builds a process sharing an accountant with other
// pipelines of the same query.
func NewWithAccountant(ctx context.Context, mp *mpool.MPool, acct *MemoryAccountant) *Process {
	return &Process{
		Ctx:  ctx,
		mp:   mp,
		acct: acct,
	}
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}

func (proc *Process) Acct() *MemoryAccountant {
	return proc.acct
}
