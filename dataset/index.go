// Copyright 2026 olist-intelligence Project Authors
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

package dataset

import (
	"encoding/binary"
	"io"
	"maps"
	"slices"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/encoding"
)

// NotId represents an identifier that has never been indexed.
const NotId = int32(-1)

// Index is a bijection between string identifiers and dense indices. Indices
// are assigned in first-seen order starting from zero.
type Index struct {
	numbers map[string]int32
	names   []string
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		numbers: make(map[string]int32),
		names:   make([]string, 0),
	}
}

// NewIndexFromNames creates an Index whose i-th name is names[i].
func NewIndexFromNames(names []string) (*Index, error) {
	idx := &Index{
		numbers: make(map[string]int32, len(names)),
		names:   make([]string, 0, len(names)),
	}
	for _, name := range names {
		if _, exist := idx.numbers[name]; exist {
			return nil, errors.NotValidf("duplicate name %q in index", name)
		}
		idx.Add(name)
	}
	return idx, nil
}

// Len returns the number of indexed names.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.names))
}

// Add adds a name and returns its index. Existing names keep their index.
func (idx *Index) Add(name string) int32 {
	if number, exist := idx.numbers[name]; exist {
		return number
	}
	number := int32(len(idx.names))
	idx.numbers[name] = number
	idx.names = append(idx.names, name)
	return number
}

// Id converts a name to its dense index, or NotId if absent.
func (idx *Index) Id(name string) int32 {
	if number, exist := idx.numbers[name]; exist {
		return number
	}
	return NotId
}

// Name converts a dense index to its name.
func (idx *Index) Name(index int32) (string, bool) {
	if index < 0 || int(index) >= len(idx.names) {
		return "", false
	}
	return idx.names[index], true
}

// Names returns a copy of all names ordered by index.
func (idx *Index) Names() []string {
	return slices.Clone(idx.names)
}

// Clone returns an independent copy of the index.
func (idx *Index) Clone() *Index {
	return &Index{
		numbers: maps.Clone(idx.numbers),
		names:   slices.Clone(idx.names),
	}
}

// Marshal index into byte stream.
func (idx *Index) Marshal(w io.Writer) error {
	// write length
	err := binary.Write(w, binary.LittleEndian, int32(len(idx.names)))
	if err != nil {
		return errors.Trace(err)
	}
	// write names
	for _, s := range idx.names {
		err = encoding.WriteString(w, s)
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// UnmarshalIndex reads an index from byte stream.
func UnmarshalIndex(r io.Reader) (*Index, error) {
	// read length
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if n < 0 {
		return nil, errors.NotValidf("index length %d", n)
	}
	// read names, growing with the stream rather than the declared length
	names := make([]string, 0, min(n, 1024))
	for i := 0; i < int(n); i++ {
		name, err := encoding.ReadString(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, name)
	}
	return NewIndexFromNames(names)
}
