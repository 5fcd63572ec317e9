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

package prime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// verdictsTotal counts primality verdicts.
	// Labels: stage (trivial, trialDivision, millerRabin), result (prime, composite)
	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearprime",
		Subsystem: "primality",
		Name:      "verdicts_total",
		Help:      "Total primality verdicts by deciding stage",
	}, []string{"stage", "result"})
)
