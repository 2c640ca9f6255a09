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

// Package mpool implements the byte-accounted memory pool that all
// vector and batch allocations flow through.
package mpool

import (
	"fmt"
	"sync/atomic"

	"github.com/colstream/colstream/pkg/common/moerr"
)

const (
	MB = 1 << 20
	GB = 1 << 30

	// NoLimit disables the cap check.
	NoLimit int64 = 0
)

// MPool tracks the bytes its owner currently holds. A pool with a cap
// refuses allocations that would put the current balance past it.
type MPool struct {
	name string
	cap  int64

	currNB   atomic.Int64
	highNB   atomic.Int64
	numAlloc atomic.Int64
	numFree  atomic.Int64
}

func NewMPool(name string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidArgNoCtx("mpool cap", cap)
	}
	return &MPool{name: name, cap: cap}, nil
}

// MustNewZero returns an uncapped pool, for tests and tools.
func MustNewZero() *MPool {
	mp, err := NewMPool("zero", NoLimit)
	if err != nil {
		panic(err)
	}
	return mp
}

func MustNew(name string) *MPool {
	mp, err := NewMPool(name, NoLimit)
	if err != nil {
		panic(err)
	}
	return mp
}

func (mp *MPool) Name() string {
	return mp.name
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

// CurrNB returns the current number of bytes held from the pool.
func (mp *MPool) CurrNB() int64 {
	return mp.currNB.Load()
}

func (mp *MPool) HighWaterMark() int64 {
	return mp.highNB.Load()
}

func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInvalidArgNoCtx("mpool alloc size", sz)
	}
	if sz == 0 {
		return nil, nil
	}
	nb := mp.currNB.Add(int64(sz))
	if mp.cap != NoLimit && nb > mp.cap {
		mp.currNB.Add(-int64(sz))
		return nil, moerr.NewOOMNoCtx()
	}
	for {
		high := mp.highNB.Load()
		if nb <= high || mp.highNB.CompareAndSwap(high, nb) {
			break
		}
	}
	mp.numAlloc.Add(1)
	return make([]byte, sz), nil
}

func (mp *MPool) Free(bs []byte) {
	if bs == nil {
		return
	}
	mp.numFree.Add(1)
	if mp.currNB.Add(-int64(cap(bs))) < 0 {
		panic(moerr.NewInternalErrorNoCtx("mpool %s: free of untracked bytes", mp.name))
	}
}

// Grow reallocates old to sz bytes, copying the old contents.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	data, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(data, old)
	mp.Free(old)
	return data, nil
}

func (mp *MPool) Report() string {
	return fmt.Sprintf("mpool %s: cap %d, current %d, high water %d, allocs %d, frees %d",
		mp.name, mp.cap, mp.CurrNB(), mp.HighWaterMark(), mp.numAlloc.Load(), mp.numFree.Load())
}
