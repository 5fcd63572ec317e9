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

// Package prime provides probabilistic primality testing
// tuned for integers with thousands of decimal digits.
package prime

import (
	"crypto/sha256"
	"math/big"
	"math/rand/v2"
	"strconv"
)

var (
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)

	// deterministicBases decide primality exactly for n < 3.3 * 10^24
	// which covers everything fitting into 64 bits.
	deterministicBases = []int64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

	defaultTester = NewTester(Conf{})
)

// Stage identifies the part of the test which decided the verdict.
type Stage int

const (
	StageTrivial Stage = iota
	StageTrialDivision
	StageMillerRabin
)

func (s Stage) String() string {
	switch s {
	case StageTrivial:
		return "trivial"
	case StageTrialDivision:
		return "trialDivision"
	case StageMillerRabin:
		return "millerRabin"
	default:
		return "stage" + strconv.Itoa(int(s))
	}
}

// Verdict is a detailed result of a primality test.
type Verdict struct {
	Prime bool
	Stage Stage

	// Rounds is the number of Miller-Rabin witnesses actually
	// evaluated (zero if the test did not get that far).
	Rounds int
}

// Tester is a stateless primality tester. It is safe for concurrent use.
//
// The test consists of handling trivial cases, trial division by
// a fixed set of small primes and finally Miller-Rabin. For n < 2^64
// a deterministic witness set is used (exact result). Larger numbers
// get witness 2 followed by pseudo-random witnesses derived from the
// SHA-256 of n, so the verdict for a given n is reproducible.
// With the default 64 rounds the probability that a composite
// passes is at most 4^-64 = 2^-128 regardless of the bit length.
type Tester struct {
	rounds int
	primes []uint64
	groups []primeGroup

	// exactLimit is the square of the largest small prime;
	// numbers below it which survived trial division are prime
	exactLimit uint64
}

// IsProbablyPrime tests n. Negative values are reported as not prime.
func (t *Tester) IsProbablyPrime(n *big.Int) bool {
	return t.Test(n).Prime
}

// Test tests n and reports also how the decision has been made.
func (t *Tester) Test(n *big.Int) Verdict {
	return countVerdict(t.test(n, true))
}

// IsProbablyPrimeSieved tests n skipping the trial division. It is meant
// for candidates the caller has already sieved by small primes. The verdict
// is the same as with IsProbablyPrime, only the cost differs.
func (t *Tester) IsProbablyPrimeSieved(n *big.Int) bool {
	return countVerdict(t.test(n, false)).Prime
}

// Rounds returns the number of Miller-Rabin rounds needed
// to confirm a prime above 2^64.
func (t *Tester) Rounds() int {
	return t.rounds
}

func countVerdict(v Verdict) Verdict {
	result := "composite"
	if v.Prime {
		result = "prime"
	}
	verdictsTotal.WithLabelValues(v.Stage.String(), result).Inc()
	return v
}

func (t *Tester) test(n *big.Int, trialDivision bool) Verdict {
	if n == nil || n.Cmp(bigTwo) < 0 {
		return Verdict{Stage: StageTrivial}
	}
	if n.Cmp(bigTwo) == 0 {
		return Verdict{Prime: true, Stage: StageTrivial}
	}
	if n.Bit(0) == 0 {
		return Verdict{Stage: StageTrivial}
	}
	if trialDivision {
		if decided, isPrime := t.trialDivision(n); decided {
			return Verdict{Prime: isPrime, Stage: StageTrialDivision}
		}

	} else if n.Cmp(bigThree) == 0 {
		return Verdict{Prime: true, Stage: StageTrivial}
	}
	isPrime, rounds := t.millerRabin(n)
	return Verdict{Prime: isPrime, Stage: StageMillerRabin, Rounds: rounds}
}

// trialDivision expects odd n > 2.
func (t *Tester) trialDivision(n *big.Int) (decided bool, isPrime bool) {
	if len(t.primes) == 0 {
		return false, false
	}
	if n.IsUint64() && n.Uint64() <= t.primes[len(t.primes)-1] {
		v := n.Uint64()
		for _, p := range t.primes {
			if p*p > v {
				return true, true
			}
			if v%p == 0 {
				return true, v == p
			}
		}
		return true, true
	}
	rem := new(big.Int)
	for _, grp := range t.groups {
		rv := rem.Rem(n, grp.product).Uint64()
		for _, p := range grp.primes {
			if rv%p == 0 {
				return true, false
			}
		}
	}
	if n.IsUint64() && n.Uint64() < t.exactLimit {
		return true, true
	}
	return false, false
}

// millerRabin expects odd n with no small factors.
func (t *Tester) millerRabin(n *big.Int) (bool, int) {
	nm1 := new(big.Int).Sub(n, bigOne)
	s := nm1.TrailingZeroBits()
	d := new(big.Int).Rsh(nm1, s)

	if n.BitLen() <= 64 {
		for i, b := range deterministicBases {
			a := big.NewInt(b)
			if a.Cmp(nm1) >= 0 {
				return true, i
			}
			if !strongProbe(n, nm1, d, s, a) {
				return false, i + 1
			}
		}
		return true, len(deterministicBases)
	}

	var witnesses *witnessSource
	for i := 0; i < t.rounds; i++ {
		var a *big.Int
		if i == 0 {
			a = big.NewInt(2)

		} else {
			if witnesses == nil {
				witnesses = newWitnessSource(n)
			}
			a = witnesses.next()
		}
		if !strongProbe(n, nm1, d, s, a) {
			return false, i + 1
		}
	}
	return true, t.rounds
}

// strongProbe reports whether n is a strong probable prime to base a,
// with n - 1 = d * 2^s and d odd.
func strongProbe(n, nm1, d *big.Int, s uint, a *big.Int) bool {
	x := new(big.Int).Exp(a, d, n)
	if x.Cmp(bigOne) == 0 || x.Cmp(nm1) == 0 {
		return true
	}
	for i := uint(1); i < s; i++ {
		x.Mul(x, x)
		x.Mod(x, n)
		if x.Cmp(nm1) == 0 {
			return true
		}
		if x.Cmp(bigOne) == 0 {
			return false
		}
	}
	return false
}

// witnessSource generates uniformly distributed witnesses from [3, n-2].
type witnessSource struct {
	rng     *rand.ChaCha8
	span    *big.Int
	buf     []byte
	topMask byte
}

func (ws *witnessSource) next() *big.Int {
	ans := new(big.Int)
	for {
		ws.rng.Read(ws.buf)
		ws.buf[0] &= ws.topMask
		ans.SetBytes(ws.buf)
		if ans.Cmp(ws.span) < 0 {
			return ans.Add(ans, bigThree)
		}
	}
}

func newWitnessSource(n *big.Int) *witnessSource {
	span := new(big.Int).Sub(n, big.NewInt(4))
	numBytes := (span.BitLen() + 7) / 8
	excess := uint(numBytes*8 - span.BitLen())
	return &witnessSource{
		rng:     rand.NewChaCha8(sha256.Sum256(n.Bytes())),
		span:    span,
		buf:     make([]byte, numBytes),
		topMask: byte(0xff >> excess),
	}
}

func NewTester(conf Conf) *Tester {
	rounds := conf.Rounds
	if rounds < DefaultRounds {
		rounds = DefaultRounds
	}
	numPrimes := conf.TrialDivisionPrimes
	if numPrimes <= 0 {
		numPrimes = DefaultTrialDivisionPrimes
	}
	primes := firstPrimes(numPrimes)
	largest := primes[len(primes)-1]
	return &Tester{
		rounds:     rounds,
		primes:     primes,
		groups:     groupPrimes(primes),
		exactLimit: largest * largest,
	}
}
