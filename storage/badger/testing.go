// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "github.com/poiesic/graphrag/storage"

// MemoryStores bundles in-memory stores for testing.
type MemoryStores struct {
	KV        storage.KVStore
	Vectors   storage.VectorStore
	Graph     storage.GraphStore
	DocStatus storage.DocStatusStore
	Backend   *Backend
}

// NewMemoryStores creates all four stores on a single in-memory backend.
// Caller must close the backend when done.
func NewMemoryStores() (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	kv, err := NewKVStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectors, err := NewVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	graph, err := NewGraphStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	docStatus, err := NewDocStatusStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		KV:        kv,
		Vectors:   vectors,
		Graph:     graph,
		DocStatus: docStatus,
		Backend:   backend,
	}, nil
}

// Close closes the underlying backend.
func (m *MemoryStores) Close() error {
	return m.Backend.Close()
}
