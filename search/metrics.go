// Copyright 2024 The nearprime authors
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

package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// examinedCandidates measures how many candidates a search had to test.
	examinedCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nearprime",
		Subsystem: "search",
		Name:      "examined_candidates",
		Help:      "Number of candidates tested per search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	// searchOutcomes counts finished searches.
	// Labels: result (found, exhausted, invalid, cancelled)
	searchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearprime",
		Subsystem: "search",
		Name:      "outcomes_total",
		Help:      "Total finished searches by result",
	}, []string{"result"})
)
