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


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for all persisted record types.
// Field order is part of the storage format; append new fields at the end.

// IDMUS serializes an ID as a varint.
var IDMUS = idMUS{}

type idMUS struct{}

func (s idMUS) Marshal(id ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (s idMUS) Unmarshal(bs []byte) (id ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (s idMUS) Size(id ID) (size int) {
	return varint.Uint64.Size(uint64(id))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// DocStatusMUS serializes a DocStatus as a varint.
var DocStatusMUS = docStatusMUS{}

type docStatusMUS struct{}

func (s docStatusMUS) Marshal(status DocStatus, bs []byte) (n int) {
	return varint.Int.Marshal(int(status), bs)
}

func (s docStatusMUS) Unmarshal(bs []byte) (status DocStatus, n int, err error) {
	v, n, err := varint.Int.Unmarshal(bs)
	return DocStatus(v), n, err
}

func (s docStatusMUS) Size(status DocStatus) (size int) {
	return varint.Int.Size(int(status))
}

func (s docStatusMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int.Skip(bs)
}

// TimeMUS serializes a time.Time as Unix microseconds.
var TimeMUS = timeMUS{}

type timeMUS struct{}

func (s timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func (s timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (s timeMUS) Size(t time.Time) (size int) {
	return varint.Int64.Size(t.UnixMicro())
}

func (s timeMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

var (
	idSliceMUS = ord.NewSliceSer[ID](IDMUS)
	vectorMUS  = ord.NewSliceSer[float32](raw.Float32)
	stringMUS  = ord.String
	intMUS     = varint.Int
	float64MUS = raw.Float64
)

// DocumentMUS serializes a Document.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (s documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += IDMUS.Marshal(d.ContentHash, bs[n:])
	n += stringMUS.Marshal(d.Summary, bs[n:])
	n += DocStatusMUS.Marshal(d.Status, bs[n:])
	n += stringMUS.Marshal(d.Error, bs[n:])
	n += intMUS.Marshal(d.ChunkCount, bs[n:])
	n += TimeMUS.Marshal(d.InsertedAt, bs[n:])
	n += TimeMUS.Marshal(d.UpdatedAt, bs[n:])
	return
}

func (s documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if d.ContentHash, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.Summary, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.Status, n1, err = DocStatusMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.Error, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.ChunkCount, n1, err = intMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.InsertedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s documentMUS) Size(d Document) (size int) {
	size = IDMUS.Size(d.Id)
	size += IDMUS.Size(d.ContentHash)
	size += stringMUS.Size(d.Summary)
	size += DocStatusMUS.Size(d.Status)
	size += stringMUS.Size(d.Error)
	size += intMUS.Size(d.ChunkCount)
	size += TimeMUS.Size(d.InsertedAt)
	size += TimeMUS.Size(d.UpdatedAt)
	return
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// ChunkMUS serializes a Chunk.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (s chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(c.Id, bs)
	n += IDMUS.Marshal(c.DocId, bs[n:])
	n += intMUS.Marshal(c.Ordinal, bs[n:])
	n += stringMUS.Marshal(c.Content, bs[n:])
	n += intMUS.Marshal(c.Tokens, bs[n:])
	n += intMUS.Marshal(c.OverlapTokens, bs[n:])
	n += vectorMUS.Marshal(c.Vector, bs[n:])
	return
}

func (s chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if c.DocId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Ordinal, n1, err = intMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Content, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Tokens, n1, err = intMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.OverlapTokens, n1, err = intMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s chunkMUS) Size(c Chunk) (size int) {
	size = IDMUS.Size(c.Id)
	size += IDMUS.Size(c.DocId)
	size += intMUS.Size(c.Ordinal)
	size += stringMUS.Size(c.Content)
	size += intMUS.Size(c.Tokens)
	size += intMUS.Size(c.OverlapTokens)
	size += vectorMUS.Size(c.Vector)
	return
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// EntityMUS serializes an Entity.
var EntityMUS = entityMUS{}

type entityMUS struct{}

func (s entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n = stringMUS.Marshal(e.Name, bs)
	n += stringMUS.Marshal(e.Type, bs[n:])
	n += stringMUS.Marshal(e.Description, bs[n:])
	n += idSliceMUS.Marshal(e.SourceChunkIds, bs[n:])
	n += intMUS.Marshal(e.Fragments, bs[n:])
	n += vectorMUS.Marshal(e.Vector, bs[n:])
	n += TimeMUS.Marshal(e.InsertedAt, bs[n:])
	n += TimeMUS.Marshal(e.UpdatedAt, bs[n:])
	return
}

func (s entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var n1 int
	if e.Name, n, err = stringMUS.Unmarshal(bs); err != nil {
		return
	}
	if e.Type, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.Description, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.SourceChunkIds, n1, err = idSliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.Fragments, n1, err = intMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.InsertedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s entityMUS) Size(e Entity) (size int) {
	size = stringMUS.Size(e.Name)
	size += stringMUS.Size(e.Type)
	size += stringMUS.Size(e.Description)
	size += idSliceMUS.Size(e.SourceChunkIds)
	size += intMUS.Size(e.Fragments)
	size += vectorMUS.Size(e.Vector)
	size += TimeMUS.Size(e.InsertedAt)
	size += TimeMUS.Size(e.UpdatedAt)
	return
}

func (s entityMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// RelationMUS serializes a Relation.
var RelationMUS = relationMUS{}

type relationMUS struct{}

func (s relationMUS) Marshal(r Relation, bs []byte) (n int) {
	n = stringMUS.Marshal(r.Source, bs)
	n += stringMUS.Marshal(r.Target, bs[n:])
	n += stringMUS.Marshal(r.Description, bs[n:])
	n += stringMUS.Marshal(r.Keywords, bs[n:])
	n += float64MUS.Marshal(r.Weight, bs[n:])
	n += idSliceMUS.Marshal(r.SourceChunkIds, bs[n:])
	n += intMUS.Marshal(r.Fragments, bs[n:])
	n += TimeMUS.Marshal(r.InsertedAt, bs[n:])
	n += TimeMUS.Marshal(r.UpdatedAt, bs[n:])
	return
}

func (s relationMUS) Unmarshal(bs []byte) (r Relation, n int, err error) {
	var n1 int
	if r.Source, n, err = stringMUS.Unmarshal(bs); err != nil {
		return
	}
	if r.Target, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.Description, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.Keywords, n1, err = stringMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.Weight, n1, err = float64MUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.SourceChunkIds, n1, err = idSliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.Fragments, n1, err = intMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.InsertedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s relationMUS) Size(r Relation) (size int) {
	size = stringMUS.Size(r.Source)
	size += stringMUS.Size(r.Target)
	size += stringMUS.Size(r.Description)
	size += stringMUS.Size(r.Keywords)
	size += float64MUS.Size(r.Weight)
	size += idSliceMUS.Size(r.SourceChunkIds)
	size += intMUS.Size(r.Fragments)
	size += TimeMUS.Size(r.InsertedAt)
	size += TimeMUS.Size(r.UpdatedAt)
	return
}

func (s relationMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
