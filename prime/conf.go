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
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultRounds bounds the false positive probability
	// by 4^-64 = 2^-128 for any input
	DefaultRounds = 64

	// DefaultTrialDivisionPrimes covers all primes below 2000
	DefaultTrialDivisionPrimes = 300

	maxTrialDivisionPrimes = 20000
)

type Conf struct {
	Rounds              int `json:"rounds"`
	TrialDivisionPrimes int `json:"trialDivisionPrimes"`
}

func (conf *Conf) ValidateAndDefaults() error {
	if conf == nil {
		return fmt.Errorf("missing `primality` section")
	}
	if conf.Rounds < DefaultRounds {
		if conf.Rounds != 0 {
			log.Warn().
				Int("oldValue", conf.Rounds).
				Int("newValue", DefaultRounds).
				Msg("primality `rounds` too low for the required confidence, raising")

		} else {
			log.Warn().
				Int("value", DefaultRounds).
				Msg("primality `rounds` not set, using default")
		}
		conf.Rounds = DefaultRounds
	}
	if conf.TrialDivisionPrimes < 0 || conf.TrialDivisionPrimes > maxTrialDivisionPrimes {
		return fmt.Errorf(
			"invalid value %d for trialDivisionPrimes (must be between 0 and %d)",
			conf.TrialDivisionPrimes, maxTrialDivisionPrimes,
		)
	}
	if conf.TrialDivisionPrimes == 0 {
		conf.TrialDivisionPrimes = DefaultTrialDivisionPrimes
		log.Warn().
			Int("value", conf.TrialDivisionPrimes).
			Msg("primality `trialDivisionPrimes` not set, using default")
	}
	return nil
}
