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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/encoding"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/model"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func newTestArtifact(t *testing.T) *Artifact {
	customers, err := dataset.NewIndexFromNames([]string{"u"})
	assert.NoError(t, err)
	products, err := dataset.NewIndexFromNames([]string{"A", "B", "C"})
	assert.NoError(t, err)
	artifact, err := NewArtifact(customers, products,
		mat.NewDense(1, 2, []float64{1.0, 0.1}),
		mat.NewDense(2, 3, []float64{
			1, 0, 0.5,
			0, 1, 0.5,
		}), Meta{Timestamp: time.Date(2018, 9, 3, 0, 0, 0, 0, time.UTC)})
	assert.NoError(t, err)
	return artifact
}

func TestArtifact_Score(t *testing.T) {
	artifact := newTestArtifact(t)
	assert.Equal(t, 2, artifact.NFactors())
	assert.Equal(t, int32(0), artifact.CustomerIndex("u"))
	assert.Equal(t, dataset.NotId, artifact.CustomerIndex("v"))
	scores, err := artifact.Score(0)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0, 0.1, 0.55}, scores, 1e-12)
	productId, ok := artifact.ProductId(2)
	assert.True(t, ok)
	assert.Equal(t, "C", productId)
	_, ok = artifact.ProductId(3)
	assert.False(t, ok)
	// invalid inputs
	_, err = artifact.Score(1)
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = artifact.Score(dataset.NotId)
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = artifact.ScoreFactor([]float64{1})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestArtifact_UserFactorIsCopy(t *testing.T) {
	artifact := newTestArtifact(t)
	row, err := artifact.UserFactor(0)
	assert.NoError(t, err)
	row[0] = 100
	scores, err := artifact.Score(0)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0], 1e-12)
}

func TestNewArtifact_Shape(t *testing.T) {
	customers, _ := dataset.NewIndexFromNames([]string{"u1", "u2"})
	products, _ := dataset.NewIndexFromNames([]string{"p1", "p2", "p3"})
	_, err := NewArtifact(customers, products, mat.NewDense(1, 2, nil), mat.NewDense(2, 3, nil), Meta{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewArtifact(customers, products, mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil), Meta{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewArtifact(customers, products, mat.NewDense(2, 1, nil), mat.NewDense(2, 3, nil), Meta{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = NewArtifact(nil, products, mat.NewDense(2, 2, nil), mat.NewDense(2, 3, nil), Meta{})
	assert.True(t, errors.Is(err, errors.NotValid))
	artifact, err := NewArtifact(customers, products, mat.NewDense(2, 2, nil), mat.NewDense(2, 3, nil), Meta{NFactors: 7})
	assert.NoError(t, err)
	assert.Equal(t, 2, artifact.NFactors())
}

func TestNewArtifact_Immutable(t *testing.T) {
	customers, _ := dataset.NewIndexFromNames([]string{"u1"})
	products, _ := dataset.NewIndexFromNames([]string{"p1", "p2"})
	userFactors := mat.NewDense(1, 1, []float64{2})
	itemFactors := mat.NewDense(1, 2, []float64{1, 0.5})
	artifact, err := NewArtifact(customers, products, userFactors, itemFactors, Meta{})
	assert.NoError(t, err)

	customers.Add("u2")
	products.Add("p3")
	userFactors.Set(0, 0, -1)
	itemFactors.Set(0, 1, 10)
	assert.Equal(t, 1, artifact.CountCustomers())
	assert.Equal(t, 2, artifact.CountProducts())
	assert.Equal(t, dataset.NotId, artifact.CustomerIndex("u2"))
	scores, err := artifact.Score(0)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 1}, scores, 1e-12)
}

func TestFit_DetachedFromBuilder(t *testing.T) {
	builder := dataset.NewBuilder()
	assert.NoError(t, builder.Add(dataset.Interaction{CustomerId: "u1", ProductId: "p1", Count: 2}))
	assert.NoError(t, builder.Add(dataset.Interaction{CustomerId: "u1", ProductId: "p2", Count: 1}))
	data, err := builder.Build()
	assert.NoError(t, err)
	artifact, err := NewTruncatedSVD(model.Params{model.NFactors: 1}).Fit(context.Background(), data)
	assert.NoError(t, err)
	assert.NoError(t, builder.Add(dataset.Interaction{CustomerId: "u2", ProductId: "p3", Count: 1}))
	assert.Equal(t, dataset.NotId, artifact.CustomerIndex("u2"))
	assert.Equal(t, 2, artifact.CountProducts())
}

func TestMarshalArtifact(t *testing.T) {
	data := randomDataset(t, 12, 6, 5)
	artifact, err := NewTruncatedSVD(model.Params{model.NFactors: 3}).Fit(context.Background(), data)
	assert.NoError(t, err)
	buf := bytes.NewBuffer(nil)
	err = MarshalArtifact(buf, artifact)
	assert.NoError(t, err)
	copied, err := UnmarshalArtifact(buf)
	assert.NoError(t, err)
	assert.Equal(t, artifact.customers, copied.customers)
	assert.Equal(t, artifact.products, copied.products)
	assert.True(t, mat.Equal(artifact.userFactors, copied.userFactors))
	assert.True(t, mat.Equal(artifact.itemFactors, copied.itemFactors))
	assert.True(t, artifact.Meta().Timestamp.Equal(copied.Meta().Timestamp))
	assert.Equal(t, artifact.Meta().NFactors, copied.Meta().NFactors)
	assert.Equal(t, artifact.Meta().RandomState, copied.Meta().RandomState)
}

func TestUnmarshalArtifact_Corrupted(t *testing.T) {
	// wrong header
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, encoding.WriteString(buf, "not-an-artifact"))
	_, err := UnmarshalArtifact(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
	// truncated
	buf.Reset()
	assert.NoError(t, MarshalArtifact(buf, newTestArtifact(t)))
	_, err = UnmarshalArtifact(bytes.NewReader(buf.Bytes()[:buf.Len()-8]))
	assert.Error(t, err)
	// empty
	_, err = UnmarshalArtifact(bytes.NewReader(nil))
	assert.Error(t, err)
}
