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

package process

import (
	"sync"
)

// MemoryAccountant arbitrates memory across the stages of a query. Every
// stage reports its own absolute footprint; the accountant only answers
// whether the sum is within budget. Reporting never blocks and never
// fails: a stage past budget keeps running and the driving scheduler is
// expected to stop calling into it until IsSatisfied turns true again.
type MemoryAccountant struct {
	mu     sync.Mutex
	limit  int64
	stages map[string]int64
	total  int64
}

// NewMemoryAccountant creates an accountant. A limit of zero or below
// means unlimited.
func NewMemoryAccountant(limit int64) *MemoryAccountant {
	return &MemoryAccountant{
		limit:  limit,
		stages: make(map[string]int64),
	}
}

// ReportBytes records the absolute footprint of one stage.
func (a *MemoryAccountant) ReportBytes(stage string, n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += n - a.stages[stage]
	a.stages[stage] = n
}

// IsSatisfied reports whether the accountant is within budget. Advisory
// only.
func (a *MemoryAccountant) IsSatisfied() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limit <= 0 || a.total <= a.limit
}

// Reserved returns the sum of all stage reports.
func (a *MemoryAccountant) Reserved() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Release drops a stage's reservation, for use when the stage closes.
func (a *MemoryAccountant) Release(stage string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total -= a.stages[stage]
	delete(a.stages, stage)
}
