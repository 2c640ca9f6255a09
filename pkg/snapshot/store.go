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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pierrec/lz4"

	"github.com/colstream/colstream/pkg/common/moerr"
)

// Store persists captured stage state keyed by snapshot id and stage key.
type Store interface {
	Save(snapshotID uint64, key string, state []byte) error
	Load(snapshotID uint64, key string) ([]byte, error)
	Close() error
}

// MemStore keeps snapshots in memory, for tests and single-process use.
type MemStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{states: make(map[string][]byte)}
}

func memKey(snapshotID uint64, key string) string {
	return fmt.Sprintf("%d/%s", snapshotID, key)
}

func (s *MemStore) Save(snapshotID uint64, key string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := make([]byte, len(state))
	copy(dup, state)
	s.states[memKey(snapshotID, key)] = dup
	return nil
}

func (s *MemStore) Load(snapshotID uint64, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[memKey(snapshotID, key)]
	if !ok {
		return nil, moerr.NewFileNotFoundNoCtx(memKey(snapshotID, key))
	}
	return state, nil
}

func (s *MemStore) Close() error {
	return nil
}

// FileStore writes one lz4-compressed file per captured stage state.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, moerr.NewInternalErrorNoCtx("create snapshot dir %s: %v", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(snapshotID uint64, key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("snapshot-%d-%s.lz4", snapshotID, key))
}

func (s *FileStore) Save(snapshotID uint64, key string, state []byte) error {
	f, err := os.Create(s.path(snapshotID, key))
	if err != nil {
		return moerr.NewInternalErrorNoCtx("create snapshot file: %v", err)
	}
	zw := lz4.NewWriter(f)
	if _, err = zw.Write(state); err != nil {
		f.Close()
		return moerr.NewInternalErrorNoCtx("write snapshot file: %v", err)
	}
	if err = zw.Close(); err != nil {
		f.Close()
		return moerr.NewInternalErrorNoCtx("flush snapshot file: %v", err)
	}
	return f.Close()
}

func (s *FileStore) Load(snapshotID uint64, key string) ([]byte, error) {
	f, err := os.Open(s.path(snapshotID, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, moerr.NewFileNotFoundNoCtx(s.path(snapshotID, key))
		}
		return nil, moerr.NewInternalErrorNoCtx("open snapshot file: %v", err)
	}
	defer f.Close()
	state, err := io.ReadAll(lz4.NewReader(f))
	if err != nil {
		return nil, moerr.NewInternalErrorNoCtx("read snapshot file: %v", err)
	}
	return state, nil
}

func (s *FileStore) Close() error {
	return nil
}
