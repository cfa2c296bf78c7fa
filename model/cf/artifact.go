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

package cf

import (
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/encoding"
	"github.com/olist-intelligence/olist/dataset"
	"gonum.org/v1/gonum/mat"
)

const artifactMagic = "olist-recommender-v1"

// Meta describes how an artifact was built.
type Meta struct {
	Timestamp   time.Time
	NFactors    int
	RandomState int64
}

// Artifact is a trained recommendation model. It is never modified after
// creation and can be shared between goroutines.
type Artifact struct {
	customers   *dataset.Index
	products    *dataset.Index
	userFactors *mat.Dense // customers x factors
	itemFactors *mat.Dense // factors x products
	meta        Meta
}

// NewArtifact creates an artifact. The shapes of factors must agree with the indices.
// Indices and factors are copied, so later changes to the arguments are not seen.
func NewArtifact(customers, products *dataset.Index, userFactors, itemFactors *mat.Dense, meta Meta) (*Artifact, error) {
	if customers == nil || products == nil || userFactors == nil || itemFactors == nil {
		return nil, errors.NotValidf("incomplete artifact")
	}
	userRows, userCols := userFactors.Dims()
	itemRows, itemCols := itemFactors.Dims()
	if userRows != int(customers.Len()) {
		return nil, errors.NotValidf("user factors have %d rows for %d customers", userRows, customers.Len())
	}
	if itemCols != int(products.Len()) {
		return nil, errors.NotValidf("item factors have %d columns for %d products", itemCols, products.Len())
	}
	if userCols != itemRows {
		return nil, errors.NotValidf("user factors have %d columns but item factors have %d rows", userCols, itemRows)
	}
	meta.NFactors = userCols
	return &Artifact{
		customers:   customers.Clone(),
		products:    products.Clone(),
		userFactors: mat.DenseCopyOf(userFactors),
		itemFactors: mat.DenseCopyOf(itemFactors),
		meta:        meta,
	}, nil
}

func (a *Artifact) Meta() Meta {
	return a.meta
}

func (a *Artifact) CountCustomers() int {
	return int(a.customers.Len())
}

func (a *Artifact) CountProducts() int {
	return int(a.products.Len())
}

func (a *Artifact) NFactors() int {
	return a.meta.NFactors
}

// CustomerIndex returns the row of a customer, or dataset.NotId for unknown customers.
func (a *Artifact) CustomerIndex(customerId string) int32 {
	return a.customers.Id(customerId)
}

// ProductId returns the product of a column.
func (a *Artifact) ProductId(productIndex int32) (string, bool) {
	return a.products.Name(productIndex)
}

// UserFactor returns a copy of the factor row of a customer.
func (a *Artifact) UserFactor(customerIndex int32) ([]float64, error) {
	if customerIndex < 0 || int(customerIndex) >= a.CountCustomers() {
		return nil, errors.NotFoundf("customer index %d", customerIndex)
	}
	return mat.Row(nil, int(customerIndex), a.userFactors), nil
}

// Score returns the score of every product for a customer.
func (a *Artifact) Score(customerIndex int32) ([]float64, error) {
	row, err := a.UserFactor(customerIndex)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return a.ScoreFactor(row)
}

// ScoreFactor returns the score of every product for a factor row.
func (a *Artifact) ScoreFactor(row []float64) ([]float64, error) {
	if len(row) != a.meta.NFactors {
		return nil, errors.NotValidf("factor row of length %d for %d factors", len(row), a.meta.NFactors)
	}
	var scores mat.VecDense
	scores.MulVec(a.itemFactors.T(), mat.NewVecDense(len(row), row))
	return scores.RawVector().Data, nil
}

// MarshalArtifact writes an artifact to byte stream.
func MarshalArtifact(w io.Writer, a *Artifact) error {
	if err := encoding.WriteString(w, artifactMagic); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, a.meta); err != nil {
		return errors.Trace(err)
	}
	if err := a.customers.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := a.products.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteDense(w, a.userFactors); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteDense(w, a.itemFactors); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalArtifact reads an artifact from byte stream.
func UnmarshalArtifact(r io.Reader) (*Artifact, error) {
	magic, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if magic != artifactMagic {
		return nil, errors.NotValidf("artifact header %q", magic)
	}
	var meta Meta
	if err = encoding.ReadGob(r, &meta); err != nil {
		return nil, errors.Trace(err)
	}
	customers, err := dataset.UnmarshalIndex(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	products, err := dataset.UnmarshalIndex(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	userFactors, err := encoding.ReadDense(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	itemFactors, err := encoding.ReadDense(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewArtifact(customers, products, userFactors, itemFactors, meta)
}
