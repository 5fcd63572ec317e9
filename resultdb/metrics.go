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

package resultdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeLookups counts lookups answered by individual cache layers.
	// Labels: layer (redis, knownFilter), result (hit, miss)
	storeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearprime",
		Subsystem: "resultdb",
		Name:      "layer_lookups_total",
		Help:      "Total result lookups by cache layer",
	}, []string{"layer", "result"})
)
