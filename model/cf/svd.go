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
	"context"
	"math"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/model"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultNFactors        = 20
	DefaultRandomState     = 42
	DefaultOversamples     = 10
	DefaultPowerIterations = 5
)

// TruncatedSVD factorizes the interaction matrix A ≈ U Σ Vᵀ with the
// randomized algorithm of Halko et al. User factors are U·Σ and item factors
// are Vᵀ.
//
// Hyper-parameters:
//
//	NFactors        - The number of latent factors. Default is 20.
//	RandomState     - The seed of the random projection. Default is 42.
//	Oversamples     - Extra random projections. Default is 10.
//	PowerIterations - Power iterations of the range finder. Default is 5.
type TruncatedSVD struct {
	model.BaseModel
	nFactors        int
	oversamples     int
	powerIterations int
}

// NewTruncatedSVD creates a truncated SVD model.
func NewTruncatedSVD(params model.Params) *TruncatedSVD {
	svd := new(TruncatedSVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the model.
func (svd *TruncatedSVD) SetParams(params model.Params) {
	svd.BaseModel.SetParams(model.Params{model.RandomState: int64(DefaultRandomState)}.Overwrite(params))
	svd.nFactors = svd.Params.GetInt(model.NFactors, DefaultNFactors)
	svd.oversamples = svd.Params.GetInt(model.Oversamples, DefaultOversamples)
	svd.powerIterations = svd.Params.GetInt(model.PowerIterations, DefaultPowerIterations)
}

// NumFactors returns the number of factors used for a matrix with nProducts columns.
func (svd *TruncatedSVD) NumFactors(nProducts int) int {
	return min(svd.nFactors, nProducts-1)
}

// Fit factorizes the interaction matrix of a dataset into an artifact. It fails
// with dataset.ErrModelBuild when the matrix has fewer than two products.
func (svd *TruncatedSVD) Fit(ctx context.Context, data *dataset.Dataset) (*Artifact, error) {
	a := data.Matrix()
	m, n := a.Dims()
	if m == 0 || n <= 1 {
		return nil, errors.WithType(
			errors.Errorf("cannot factorize a %dx%d matrix", m, n), dataset.ErrModelBuild)
	}
	if svd.nFactors < 1 {
		return nil, errors.WithType(
			errors.Errorf("number of factors must be positive, got %d", svd.nFactors), dataset.ErrModelBuild)
	}
	k := svd.NumFactors(n)
	l := min(k+max(svd.oversamples, 0), m, n)
	log.Logger().Info("fit truncated svd",
		zap.Int("n_customers", m),
		zap.Int("n_products", n),
		zap.Int("n_interactions", a.NNZ()),
		zap.Int("n_factors", k))
	start := time.Now()

	// randomized range finder
	rng := svd.NewRandomGenerator()
	omega := mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		row := omega.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}
	q := orthonormalize(a.MulDense(omega))
	for it := 0; it < svd.powerIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		if q == nil {
			break
		}
		z := orthonormalize(a.TMulDense(q))
		if z == nil {
			q = nil
			break
		}
		q = orthonormalize(a.MulDense(z))
	}
	if q == nil {
		return nil, errors.WithType(errors.New("interaction matrix has no range"), dataset.ErrModelBuild)
	}

	// B = Qᵀ·A is small, so its SVD is computed exactly.
	b := mat.DenseCopyOf(a.TMulDense(q).T())
	var factorization mat.SVD
	if ok := factorization.Factorize(b, mat.SVDThin); !ok {
		return nil, errors.WithType(errors.New("svd failed to converge"), dataset.ErrModelBuild)
	}
	var uHat, v mat.Dense
	factorization.UTo(&uHat)
	factorization.VTo(&v)
	sigma := factorization.Values(nil)
	var u mat.Dense
	u.Mul(q, &uHat)

	rank := min(k, len(sigma))
	userFactors := mat.NewDense(m, k, nil)
	itemFactors := mat.NewDense(k, n, nil)
	for j := 0; j < rank; j++ {
		uCol := mat.Col(nil, j, &u)
		vCol := mat.Col(nil, j, &v)
		if flipSign(vCol) {
			floats.Scale(-1, uCol)
			floats.Scale(-1, vCol)
		}
		floats.Scale(sigma[j], uCol)
		userFactors.SetCol(j, uCol)
		itemFactors.SetRow(j, vCol)
	}
	log.Logger().Info("fit truncated svd complete",
		zap.Int("rank", rank),
		zap.Duration("duration", time.Since(start)))
	return NewArtifact(data.CustomerIndex(), data.ProductIndex(), userFactors, itemFactors, Meta{
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		RandomState: svd.GetRandomState(),
	})
}

// flipSign reports whether the largest magnitude component of v is negative.
func flipSign(v []float64) bool {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	return v[best] < 0
}

// orthonormalize returns an orthonormal basis of the column space of x using
// modified Gram-Schmidt with reorthogonalization. Columns that are numerically
// dependent are dropped. It returns nil when no column survives.
func orthonormalize(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	basis := make([][]float64, 0, cols)
	for j := 0; j < cols; j++ {
		v := mat.Col(nil, j, x)
		norm := floats.Norm(v, 2)
		if norm == 0 {
			continue
		}
		for pass := 0; pass < 2; pass++ {
			for _, e := range basis {
				floats.AddScaled(v, -floats.Dot(e, v), e)
			}
		}
		residual := floats.Norm(v, 2)
		if residual <= 1e-10*norm {
			continue
		}
		floats.Scale(1/residual, v)
		basis = append(basis, v)
	}
	if len(basis) == 0 {
		return nil
	}
	q := mat.NewDense(rows, len(basis), nil)
	for j, e := range basis {
		q.SetCol(j, e)
	}
	return q
}
