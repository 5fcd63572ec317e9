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
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	dfltDistanceFactor        = 6
	dfltMinDistance           = 64
	dfltMaxCandidates         = 40000
	dfltTimeoutSecs           = 300
	dfltMaxConcurrentSearches = 4
	dfltSieveLimit            = 1 << 22
	maxDefaultWorkers         = 8
)

func defaultWorkers() int {
	return min(runtime.NumCPU(), maxDefaultWorkers)
}

// Conf configures the nearby prime search.
type Conf struct {

	// MaxSourceDigits limits the length of accepted numerals
	MaxSourceDigits int `json:"maxSourceDigits"`

	// DistanceFactor and MinDistance define the search window:
	// max(MinDistance, DistanceFactor * digits^2) on each side of the source.
	// Prime gaps near an n-digit number stay well below (n * ln 10)^2.
	DistanceFactor int   `json:"distanceFactor"`
	MinDistance    int64 `json:"minDistance"`

	// MaxCandidates limits the number of primality tests per search
	MaxCandidates int `json:"maxCandidates"`

	// Workers specifies how many candidates are tested in parallel
	// within a single search. The result does not depend on the value.
	// The default is the number of CPUs (at most 8).
	Workers int `json:"workers"`

	// SieveLimit is the largest small prime used to sieve the search
	// window of long sources before candidates are tested.
	// Candidates with a small factor are skipped without being tested
	// and they do not count into MaxCandidates.
	SieveLimit int `json:"sieveLimit"`

	// TimeoutSecs is a hard limit for a single search
	TimeoutSecs int `json:"timeoutSecs"`

	// MaxConcurrentSearches limits the number of searches running
	// at the same time (other requests wait for a free slot)
	MaxConcurrentSearches int `json:"maxConcurrentSearches"`
}

func (conf *Conf) Timeout() time.Duration {
	return time.Duration(conf.TimeoutSecs) * time.Second
}

func (conf *Conf) ValidateAndDefaults() error {
	if conf == nil {
		return fmt.Errorf("missing `search` section")
	}
	if conf.MaxSourceDigits < 0 {
		return fmt.Errorf("search value `maxSourceDigits` must be >= 0")
	}
	if conf.MaxSourceDigits == 0 {
		conf.MaxSourceDigits = MaxSourceDigits
		log.Warn().
			Int("value", conf.MaxSourceDigits).
			Msg("search value `maxSourceDigits` not set, using default")
	}
	if conf.DistanceFactor < 0 || conf.MinDistance < 0 || conf.MaxCandidates < 0 {
		return fmt.Errorf("search window values (distanceFactor, minDistance, maxCandidates) must be >= 0")
	}
	if conf.DistanceFactor == 0 {
		conf.DistanceFactor = dfltDistanceFactor
		log.Warn().
			Int("value", conf.DistanceFactor).
			Msg("search value `distanceFactor` not set, using default")
	}
	if conf.MinDistance == 0 {
		conf.MinDistance = dfltMinDistance
		log.Warn().
			Int64("value", conf.MinDistance).
			Msg("search value `minDistance` not set, using default")
	}
	if conf.MaxCandidates == 0 {
		conf.MaxCandidates = dfltMaxCandidates
		log.Warn().
			Int("value", conf.MaxCandidates).
			Msg("search value `maxCandidates` not set, using default")
	}
	if conf.Workers <= 0 {
		conf.Workers = defaultWorkers()
		log.Warn().
			Int("value", conf.Workers).
			Msg("search value `workers` not set, using number of CPUs")
	}
	if conf.SieveLimit < 0 || conf.SieveLimit > maxSieveLimit {
		return fmt.Errorf("search value `sieveLimit` must be between 0 and %d", maxSieveLimit)
	}
	if conf.SieveLimit == 0 {
		conf.SieveLimit = dfltSieveLimit
		log.Warn().
			Int("value", conf.SieveLimit).
			Msg("search value `sieveLimit` not set, using default")
	}
	if conf.TimeoutSecs <= 0 {
		conf.TimeoutSecs = dfltTimeoutSecs
		log.Warn().
			Int("value", conf.TimeoutSecs).
			Msg("search value `timeoutSecs` not set, using default")
	}
	if conf.MaxConcurrentSearches <= 0 {
		conf.MaxConcurrentSearches = dfltMaxConcurrentSearches
		log.Warn().
			Int("value", conf.MaxConcurrentSearches).
			Msg("search value `maxConcurrentSearches` not set, using default")
	}
	return nil
}
