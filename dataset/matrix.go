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
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable sparse matrix in compressed sparse row format. Column
// indices are sorted within each row.
type Matrix struct {
	rows    int
	cols    int
	indptr  []int
	indices []int32
	values  []float64
}

var _ mat.Matrix = (*Matrix)(nil)

func newMatrix(rows, cols int, rowIndices, colIndices []int32, values []float64) *Matrix {
	m := &Matrix{
		rows:    rows,
		cols:    cols,
		indptr:  make([]int, rows+1),
		indices: make([]int32, len(values)),
		values:  make([]float64, len(values)),
	}
	for _, i := range rowIndices {
		m.indptr[i+1]++
	}
	for i := 0; i < rows; i++ {
		m.indptr[i+1] += m.indptr[i]
	}
	next := make([]int, rows)
	copy(next, m.indptr[:rows])
	for k, i := range rowIndices {
		m.indices[next[i]] = colIndices[k]
		m.values[next[i]] = values[k]
		next[i]++
	}
	for i := 0; i < rows; i++ {
		sort.Sort(rowSorter{m.indices[m.indptr[i]:m.indptr[i+1]], m.values[m.indptr[i]:m.indptr[i+1]]})
	}
	return m
}

type rowSorter struct {
	indices []int32
	values  []float64
}

func (r rowSorter) Len() int           { return len(r.indices) }
func (r rowSorter) Less(i, j int) bool { return r.indices[i] < r.indices[j] }
func (r rowSorter) Swap(i, j int) {
	r.indices[i], r.indices[j] = r.indices[j], r.indices[i]
	r.values[i], r.values[j] = r.values[j], r.values[i]
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) {
	return m.rows, m.cols
}

// At returns the value at row i and column j. Absent cells are zero.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	cols := m.indices[m.indptr[i]:m.indptr[i+1]]
	k := sort.Search(len(cols), func(k int) bool { return cols[k] >= int32(j) })
	if k < len(cols) && cols[k] == int32(j) {
		return m.values[m.indptr[i]+k]
	}
	return 0
}

// T returns the transpose of the matrix.
func (m *Matrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// NNZ returns the number of stored cells.
func (m *Matrix) NNZ() int {
	return len(m.values)
}

// Row returns the column indices and values stored in row i.
func (m *Matrix) Row(i int) ([]int32, []float64) {
	return m.indices[m.indptr[i]:m.indptr[i+1]], m.values[m.indptr[i]:m.indptr[i+1]]
}

// MulDense returns m·x.
func (m *Matrix) MulDense(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	if r != m.cols {
		panic(mat.ErrShape)
	}
	dst := mat.NewDense(m.rows, c, nil)
	for i := 0; i < m.rows; i++ {
		row := dst.RawRowView(i)
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			floats.AddScaled(row, m.values[k], x.RawRowView(int(m.indices[k])))
		}
	}
	return dst
}

// TMulDense returns mᵀ·x.
func (m *Matrix) TMulDense(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	if r != m.rows {
		panic(mat.ErrShape)
	}
	dst := mat.NewDense(m.cols, c, nil)
	for i := 0; i < m.rows; i++ {
		src := x.RawRowView(i)
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			floats.AddScaled(dst.RawRowView(int(m.indices[k])), m.values[k], src)
		}
	}
	return dst
}
