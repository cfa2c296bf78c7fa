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

package logics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "recommend_total",
	}, []string{"method"})
	RankerFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "faults_total",
	}, []string{"method"})
	LoadArtifactFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "load_artifact_failures_total",
	})
	ArtifactTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "artifact_timestamp_seconds",
	})
	ArtifactCustomers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "artifact_customers",
	})
	ArtifactProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "artifact_products",
	})
	PopularitySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "olist",
		Subsystem: "ranker",
		Name:      "popularity_seconds",
	}, []string{"source"})
)
