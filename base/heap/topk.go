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

package heap

import (
	"cmp"
	"container/heap"
	"sort"
)

type Elem[W cmp.Ordered] struct {
	Index  int32
	Weight W
}

// _heap keeps the worst element at the root. An element is worse when its weight
// is smaller, or when weights are equal and its index is larger.
type _heap[W cmp.Ordered] struct {
	elems []Elem[W]
}

func worse[W cmp.Ordered](a, b Elem[W]) bool {
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	return a.Index > b.Index
}

func (h *_heap[W]) Len() int {
	return len(h.elems)
}

func (h *_heap[W]) Less(i, j int) bool {
	return worse(h.elems[i], h.elems[j])
}

func (h *_heap[W]) Swap(i, j int) {
	h.elems[i], h.elems[j] = h.elems[j], h.elems[i]
}

func (h *_heap[W]) Push(x interface{}) {
	h.elems = append(h.elems, x.(Elem[W]))
}

func (h *_heap[W]) Pop() interface{} {
	old := h.elems
	item := old[len(old)-1]
	h.elems = old[:len(old)-1]
	return item
}

// TopKFilter keeps the k best indices pushed into it. Higher weights win and
// equal weights are broken by the smaller index.
type TopKFilter[W cmp.Ordered] struct {
	_heap[W]
	k int
}

// NewTopKFilter creates a top k filter.
func NewTopKFilter[W cmp.Ordered](k int) *TopKFilter[W] {
	return &TopKFilter[W]{
		_heap: _heap[W]{elems: make([]Elem[W], 0, max(k, 0))},
		k:     k,
	}
}

// Push pushes an element into the filter.
func (f *TopKFilter[W]) Push(index int32, weight W) {
	if f.k <= 0 {
		return
	}
	e := Elem[W]{Index: index, Weight: weight}
	if f.Len() < f.k {
		heap.Push(&f._heap, e)
	} else if worse(f.elems[0], e) {
		f.elems[0] = e
		heap.Fix(&f._heap, 0)
	}
}

// PopAll returns the kept elements from best to worst and empties the filter.
func (f *TopKFilter[W]) PopAll() ([]int32, []W) {
	elems := f.elems
	f.elems = nil
	sort.Slice(elems, func(i, j int) bool {
		return worse(elems[j], elems[i])
	})
	indices := make([]int32, len(elems))
	weights := make([]W, len(elems))
	for i, e := range elems {
		indices[i] = e.Index
		weights[i] = e.Weight
	}
	return indices, weights
}

// TopK returns the indices of the k largest values from best to worst.
func TopK[W cmp.Ordered](values []W, k int) []int32 {
	filter := NewTopKFilter[W](k)
	for i, v := range values {
		filter.Push(int32(i), v)
	}
	indices, _ := filter.PopAll()
	return indices
}
