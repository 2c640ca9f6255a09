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
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/logutil"
)

// Batch is a set of rows processed as a unit: columns of equal length,
// owned by whichever stage currently holds the reference.
type Batch struct {
	// reference count, default is 1
	Cnt int64
	// Attrs column name list
	Attrs []string
	// Vecs col data
	Vecs []*vector.Vector

	rowCount int
}

func New(attrs []string) *Batch {
	return &Batch{
		Cnt:   1,
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Cnt:  1,
		Vecs: make([]*vector.Vector, n),
	}
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(rowCount int) {
	bat.rowCount = rowCount
}

func (bat *Batch) AddRowCount(rowCount int) {
	bat.rowCount += rowCount
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

func (bat *Batch) SetAttributes(attrs []string) {
	bat.Attrs = attrs
}

func (bat *Batch) IsEmpty() bool {
	return bat == nil || bat.rowCount == 0
}

// Shrink keeps only the selected rows, in the given order.
func (bat *Batch) Shrink(sels []int64) {
	if len(sels) == bat.rowCount {
		return
	}
	for _, vec := range bat.Vecs {
		vec.Shrink(sels)
	}
	bat.rowCount = len(sels)
}

// Size returns the allocated bytes backing the batch.
func (bat *Batch) Size() int {
	var size int
	for _, vec := range bat.Vecs {
		size += vec.Size()
	}
	return size
}

func (bat *Batch) Clean(m *mpool.MPool) {
	if bat == nil {
		return
	}
	if atomic.AddInt64(&bat.Cnt, -1) > 0 {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(m)
		}
	}
	bat.Attrs = nil
	bat.Vecs = nil
	bat.rowCount = 0
}

func (bat *Batch) AddCnt(cnt int) {
	atomic.AddInt64(&bat.Cnt, int64(cnt))
}

func (bat *Batch) GetCnt() int64 {
	return atomic.LoadInt64(&bat.Cnt)
}

func (bat *Batch) Dup(mp *mpool.MPool) (*Batch, error) {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.SetAttributes(bat.Attrs)
	for j, vec := range bat.Vecs {
		rvec, err := vec.Dup(mp)
		if err != nil {
			rbat.Clean(mp)
			return nil, err
		}
		rbat.SetVector(int32(j), rvec)
	}
	rbat.rowCount = bat.rowCount
	return rbat, nil
}

func (bat *Batch) String() string {
	var buf bytes.Buffer
	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("%d : %s\n", i, vec.String()))
	}
	return buf.String()
}

func (bat *Batch) Log(tag string) {
	if bat == nil || bat.rowCount < 1 {
		return
	}
	logutil.Infof("\n" + tag + "\n" + bat.String())
}

func (bat *Batch) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = types.AppendUint32(buf, uint32(len(bat.Attrs)))
	for _, attr := range bat.Attrs {
		buf = types.AppendString(buf, attr)
	}
	buf = types.AppendUint32(buf, uint32(len(bat.Vecs)))
	for _, vec := range bat.Vecs {
		data, err := vec.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf = types.AppendBytes(buf, data)
	}
	buf = types.AppendUint32(buf, uint32(bat.rowCount))
	return buf, nil
}

// UnmarshalBinaryWithCopy decodes a batch, copying vector storage into mp.
func (bat *Batch) UnmarshalBinaryWithCopy(data []byte, mp *mpool.MPool) error {
	attrCnt, data, err := types.ReadUint32(data)
	if err != nil {
		return moerr.NewInternalErrorNoCtx("corrupted batch header")
	}
	attrs := make([]string, attrCnt)
	for i := range attrs {
		if attrs[i], data, err = types.ReadString(data); err != nil {
			return moerr.NewInternalErrorNoCtx("corrupted batch attrs")
		}
	}
	vecCnt, data, err := types.ReadUint32(data)
	if err != nil {
		return moerr.NewInternalErrorNoCtx("corrupted batch header")
	}
	vecs := make([]*vector.Vector, vecCnt)
	for i := range vecs {
		var vecData []byte
		if vecData, data, err = types.ReadBytes(data); err != nil {
			return moerr.NewInternalErrorNoCtx("corrupted batch vector")
		}
		vecs[i] = vector.NewVec(types.Type{})
		if err = vecs[i].UnmarshalBinaryWithMpool(vecData, mp); err != nil {
			for _, vec := range vecs[:i] {
				vec.Free(mp)
			}
			return err
		}
	}
	rowCount, _, err := types.ReadUint32(data)
	if err != nil {
		return moerr.NewInternalErrorNoCtx("corrupted batch row count")
	}

	bat.Cnt = 1
	bat.Attrs = attrs
	bat.Vecs = vecs
	bat.rowCount = int(rowCount)
	return nil
}
