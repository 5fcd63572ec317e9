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
	"errors"
	"math/big"
)

const (
	nearestPrimeMaxSteps = 1000
)

var (
	ErrPrimeSearchExhausted = errors.New("prime search exhausted")
)

// NearestPrime returns the smallest prime >= v. It is intended
// for small values like timer intervals (in seconds) which we want
// to keep from overlapping with other timers.
func NearestPrime(v int) (int, error) {
	if v < 2 {
		v = 2
	}
	for i := v; i < v+nearestPrimeMaxSteps; i++ {
		if defaultTester.IsProbablyPrime(big.NewInt(int64(i))) {
			return i, nil
		}
	}
	return -1, ErrPrimeSearchExhausted
}
