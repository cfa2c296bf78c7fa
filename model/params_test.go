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

package model

import (
	"testing"

	"github.com/olist-intelligence/olist/config"
	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	params := Params{
		NFactors:    8,
		RandomState: int64(7),
		Oversamples: "ten",
	}
	assert.Equal(t, 8, params.GetInt(NFactors, 20))
	assert.Equal(t, 7, params.GetInt(RandomState, 0))
	assert.Equal(t, int64(8), params.GetInt64(NFactors, 0))
	assert.Equal(t, int64(7), params.GetInt64(RandomState, 0))
	// type mismatch
	assert.Equal(t, 10, params.GetInt(Oversamples, 10))
	// not exist
	assert.Equal(t, 5, params.GetInt(PowerIterations, 5))
}

func TestParams_Overwrite(t *testing.T) {
	params := Params{NFactors: 8, RandomState: 7}
	merged := params.Overwrite(Params{NFactors: 16})
	assert.Equal(t, Params{NFactors: 16, RandomState: 7}, merged)
	assert.Equal(t, 8, params[NFactors])
}

func TestNewParamsFromConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	params := NewParamsFromConfig(&cfg.Recommend)
	assert.Equal(t, 20, params.GetInt(NFactors, 0))
	assert.Equal(t, int64(42), params.GetInt64(RandomState, 0))
	assert.Equal(t, 10, params.GetInt(Oversamples, 0))
	assert.Equal(t, 5, params.GetInt(PowerIterations, 0))
}

func TestBaseModel(t *testing.T) {
	var m BaseModel
	m.SetParams(Params{RandomState: 42})
	assert.Equal(t, int64(42), m.GetRandomState())
	assert.Equal(t, m.NewRandomGenerator().Int63(), m.NewRandomGenerator().Int63())
}
