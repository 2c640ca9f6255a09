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

package types

import (
	"encoding/binary"
	"io"
	"unsafe"
)

// EncodeFixed encodes a fixed-width value as its raw bytes.
func EncodeFixed[T FixedSizeT](v T) []byte {
	sz := unsafe.Sizeof(v)
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), sz)
}

func DecodeFixed[T FixedSizeT](v []byte) T {
	return *(*T)(unsafe.Pointer(&v[0]))
}

// EncodeSlice casts a slice of fixed-width values to its raw bytes.
// The returned slice aliases s.
func EncodeSlice[T FixedSizeT](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	sz := int(unsafe.Sizeof(s[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sz)
}

// DecodeSlice casts raw bytes back to a slice of fixed-width values.
// The returned slice aliases b.
func DecodeSlice[T FixedSizeT](b []byte) []T {
	var t T
	sz := int(unsafe.Sizeof(t))
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/sz)
}

func EncodeType(t *Type) []byte {
	buf := make([]byte, 0, 13)
	buf = append(buf, byte(t.Oid))
	buf = AppendUint32(buf, uint32(t.Size))
	buf = AppendUint32(buf, uint32(t.Width))
	buf = AppendUint32(buf, uint32(t.Scale))
	return buf
}

// DecodeTypeFrom reads a Type from the head of data and returns the rest.
func DecodeTypeFrom(data []byte) (Type, []byte, error) {
	if len(data) < 13 {
		return Type{}, nil, io.ErrUnexpectedEOF
	}
	var t Type
	t.Oid = T(data[0])
	t.Size = int32(binary.LittleEndian.Uint32(data[1:5]))
	t.Width = int32(binary.LittleEndian.Uint32(data[5:9]))
	t.Scale = int32(binary.LittleEndian.Uint32(data[9:13]))
	return t, data[13:], nil
}

// The Append/Read helpers below implement the length-prefixed binary
// layout used by vector, batch and operator state serialization.

func AppendUint64(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}

func AppendUint32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func AppendBytes(buf []byte, bs []byte) []byte {
	buf = AppendUint32(buf, uint32(len(bs)))
	return append(buf, bs...)
}

func AppendString(buf []byte, s string) []byte {
	return AppendBytes(buf, []byte(s))
}

func ReadUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint64(data), data[8:], nil
}

func ReadUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint32(data), data[4:], nil
}

func ReadBool(data []byte) (bool, []byte, error) {
	if len(data) < 1 {
		return false, nil, io.ErrUnexpectedEOF
	}
	return data[0] != 0, data[1:], nil
}

func ReadBytes(data []byte) ([]byte, []byte, error) {
	n, data, err := ReadUint32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(data)) < n {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return data[:n], data[n:], nil
}

func ReadString(data []byte) (string, []byte, error) {
	bs, data, err := ReadBytes(data)
	if err != nil {
		return "", nil, err
	}
	return string(bs), data, nil
}
