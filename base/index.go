// Copyright 2025 cinematch Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"encoding/binary"
	"io"

	"github.com/juju/errors"
)

// NotId represents an ID doesn't exist.
const NotId = int32(-1)

// Index manages the map between raw IDs and dense indices. A raw ID is a user
// ID or movie ID as seen by callers. The dense index is the internal position
// used as the model's native input space. The set of raw IDs is fixed when the
// index is built and never grows while serving.
type Index struct {
	Numbers map[int64]int32 // raw ID -> dense index
	Ids     []int64         // dense index -> raw ID
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	set := new(Index)
	set.Numbers = make(map[int64]int32)
	set.Ids = make([]int64, 0)
	return set
}

// Len returns the number of indexed IDs.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.Ids))
}

// Add adds a new ID to the index.
func (idx *Index) Add(id int64) {
	if _, exist := idx.Numbers[id]; !exist {
		idx.Numbers[id] = int32(len(idx.Ids))
		idx.Ids = append(idx.Ids, id)
	}
}

// ToNumber converts a raw ID to a dense index. NotId is returned if the ID is
// outside the indexed set.
func (idx *Index) ToNumber(id int64) int32 {
	if denseId, exist := idx.Numbers[id]; exist {
		return denseId
	}
	return NotId
}

// Contains reports whether a raw ID belongs to the indexed set.
func (idx *Index) Contains(id int64) bool {
	_, exist := idx.Numbers[id]
	return exist
}

// ToId converts a dense index to a raw ID.
func (idx *Index) ToId(index int32) int64 {
	return idx.Ids[index]
}

// GetIds returns all raw IDs in dense index order.
func (idx *Index) GetIds() []int64 {
	return idx.Ids
}

// Marshal index into byte stream.
func (idx *Index) Marshal(w io.Writer) error {
	// write length
	err := binary.Write(w, binary.LittleEndian, int32(len(idx.Ids)))
	if err != nil {
		return errors.Trace(err)
	}
	// write ids
	for _, id := range idx.Ids {
		err = binary.Write(w, binary.LittleEndian, id)
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal index from byte stream.
func (idx *Index) Unmarshal(r io.Reader) error {
	// read length
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return errors.Trace(err)
	}
	// read ids
	idx.Ids = make([]int64, 0, n)
	idx.Numbers = make(map[int64]int32, n)
	for i := 0; i < int(n); i++ {
		var id int64
		if err = binary.Read(r, binary.LittleEndian, &id); err != nil {
			return errors.Trace(err)
		}
		idx.Add(id)
	}
	return nil
}

// MarshalIndex marshal index into byte stream.
func MarshalIndex(w io.Writer, index *Index) error {
	return index.Marshal(w)
}

// UnmarshalIndex unmarshal index from byte stream.
func UnmarshalIndex(r io.Reader) (*Index, error) {
	index := &Index{}
	err := index.Unmarshal(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return index, nil
}
