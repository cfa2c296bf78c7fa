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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

const (
	// ErrDataIntegrity is attached to errors caused by malformed interactions.
	ErrDataIntegrity = errors.ConstError("data integrity error")
	// ErrModelBuild is attached to errors caused by inputs no model can be built from.
	ErrModelBuild = errors.ConstError("model build error")
)

// Interaction is the number of purchases of a product by a customer.
type Interaction struct {
	CustomerId string
	ProductId  string
	Count      int
}

// Dataset is the interaction matrix together with the index maps of its rows
// and columns. Rows are customers and columns are products.
type Dataset struct {
	customerIndex *Index
	productIndex  *Index
	matrix        *Matrix
}

func (d *Dataset) CustomerIndex() *Index {
	return d.customerIndex
}

func (d *Dataset) ProductIndex() *Index {
	return d.productIndex
}

func (d *Dataset) Matrix() *Matrix {
	return d.matrix
}

func (d *Dataset) CountCustomers() int {
	return int(d.customerIndex.Len())
}

func (d *Dataset) CountProducts() int {
	return int(d.productIndex.Len())
}

func (d *Dataset) CountInteractions() int {
	return d.matrix.NNZ()
}

type cell struct {
	row int32
	col int32
}

// Builder builds a Dataset from a stream of interactions.
type Builder struct {
	customerIndex *Index
	productIndex  *Index
	cells         mapset.Set[cell]
	rows          []int32
	cols          []int32
	values        []float64
}

func NewBuilder() *Builder {
	return &Builder{
		customerIndex: NewIndex(),
		productIndex:  NewIndex(),
		cells:         mapset.NewThreadUnsafeSet[cell](),
	}
}

// Add appends an interaction. Repeated pairs, non-positive counts and empty
// identifiers are rejected with ErrDataIntegrity and leave the builder unchanged.
func (b *Builder) Add(interaction Interaction) error {
	if interaction.CustomerId == "" || interaction.ProductId == "" {
		return errors.WithType(
			errors.Errorf("empty identifier in interaction (%q, %q)", interaction.CustomerId, interaction.ProductId),
			ErrDataIntegrity)
	}
	if interaction.Count < 1 {
		return errors.WithType(
			errors.Errorf("non-positive count %d for (%s, %s)", interaction.Count, interaction.CustomerId, interaction.ProductId),
			ErrDataIntegrity)
	}
	row, col := b.customerIndex.Id(interaction.CustomerId), b.productIndex.Id(interaction.ProductId)
	if row != NotId && col != NotId && b.cells.Contains(cell{row: row, col: col}) {
		return errors.WithType(
			errors.Errorf("duplicate interaction (%s, %s)", interaction.CustomerId, interaction.ProductId),
			ErrDataIntegrity)
	}
	row = b.customerIndex.Add(interaction.CustomerId)
	col = b.productIndex.Add(interaction.ProductId)
	b.cells.Add(cell{row: row, col: col})
	b.rows = append(b.rows, row)
	b.cols = append(b.cols, col)
	b.values = append(b.values, float64(interaction.Count))
	return nil
}

// Count returns the number of interactions added.
func (b *Builder) Count() int {
	return len(b.values)
}

// Build returns the dataset. An empty builder fails with ErrModelBuild. Interactions
// added afterwards do not change the returned dataset.
func (b *Builder) Build() (*Dataset, error) {
	if b.customerIndex.Len() == 0 || b.productIndex.Len() == 0 {
		return nil, errors.WithType(errors.New("no interactions to build a matrix from"), ErrModelBuild)
	}
	return &Dataset{
		customerIndex: b.customerIndex.Clone(),
		productIndex:  b.productIndex.Clone(),
		matrix: newMatrix(int(b.customerIndex.Len()), int(b.productIndex.Len()),
			b.rows, b.cols, b.values),
	}, nil
}

// BuildMatrix builds a Dataset from interactions. Indices are assigned in
// first-seen order.
func BuildMatrix(interactions []Interaction) (*Dataset, error) {
	builder := NewBuilder()
	for _, interaction := range interactions {
		if err := builder.Add(interaction); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return builder.Build()
}
