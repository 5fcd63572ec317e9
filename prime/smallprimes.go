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
	"math"
	"math/big"
)

// primeGroup is a run of consecutive small primes whose product
// still fits into int64 so a single big-number remainder serves
// the whole group.
type primeGroup struct {
	product *big.Int
	primes  []uint64
}

// firstPrimes returns the first n primes (sieve of Eratosthenes).
func firstPrimes(n int) []uint64 {
	if n <= 0 {
		return []uint64{}
	}
	limit := 16
	for {
		ans := sieve(limit)
		if len(ans) >= n {
			return ans[:n]
		}
		limit *= 2
	}
}

func sieve(limit int) []uint64 {
	composite := make([]bool, limit+1)
	ans := make([]uint64, 0, limit/4)
	for i := 2; i <= limit; i++ {
		if composite[i] {
			continue
		}
		ans = append(ans, uint64(i))
		for j := i * i; j <= limit; j += i {
			composite[j] = true
		}
	}
	return ans
}

// groupPrimes packs odd primes into groups with product < 2^63.
func groupPrimes(primes []uint64) []primeGroup {
	ans := make([]primeGroup, 0, len(primes)/4+1)
	curr := primeGroup{primes: make([]uint64, 0, 8)}
	var prod uint64 = 1
	for _, p := range primes {
		if p == 2 {
			continue
		}
		if prod > math.MaxInt64/p {
			curr.product = new(big.Int).SetUint64(prod)
			ans = append(ans, curr)
			curr = primeGroup{primes: make([]uint64, 0, 8)}
			prod = 1
		}
		prod *= p
		curr.primes = append(curr.primes, p)
	}
	if len(curr.primes) > 0 {
		curr.product = new(big.Int).SetUint64(prod)
		ans = append(ans, curr)
	}
	return ans
}

// SmallPrimeSet holds odd primes up to a limit and computes residues
// of big numbers modulo all of them. It is safe for concurrent use.
type SmallPrimeSet struct {
	primes []uint64
	groups []primeGroup
}

// Largest returns the largest prime of the set (zero for an empty set).
func (sps *SmallPrimeSet) Largest() uint64 {
	if len(sps.primes) == 0 {
		return 0
	}
	return sps.primes[len(sps.primes)-1]
}

// Residues returns odd primes up to (at least) limit along with n mod p
// for each of them. The returned primes may slightly exceed the limit
// as residues are computed for whole groups. n must not be negative.
func (sps *SmallPrimeSet) Residues(n *big.Int, limit uint64) (primes []uint64, residues []uint64) {
	residues = make([]uint64, 0, len(sps.primes))
	rem := new(big.Int)
	for _, grp := range sps.groups {
		if grp.primes[0] > limit {
			break
		}
		rv := rem.Rem(n, grp.product).Uint64()
		for _, p := range grp.primes {
			residues = append(residues, rv%p)
		}
	}
	return sps.primes[:len(residues)], residues
}

func NewSmallPrimeSet(limit int) *SmallPrimeSet {
	primes := sieve(limit)
	if len(primes) > 0 && primes[0] == 2 {
		primes = primes[1:]
	}
	return &SmallPrimeSet{
		primes: primes,
		groups: groupPrimes(primes),
	}
}
