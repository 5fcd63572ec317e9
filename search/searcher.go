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

// Package search implements the nearby prime search engine.
package search

import (
	"context"
	"math/big"
	"sync"
	"time"

	"nearprime/prime"

	"golang.org/x/sync/errgroup"
)

// PrimalityTester decides whether a non-negative integer is (very likely) prime.
type PrimalityTester interface {
	IsProbablyPrime(n *big.Int) bool
}

// sievedTester is implemented by testers able to skip their own
// trial division for candidates which passed the window sieve.
type sievedTester interface {
	IsProbablyPrimeSieved(n *big.Int) bool
}

// roundsReporter tells how many times more a confirmed prime
// costs compared to a typical rejected candidate.
type roundsReporter interface {
	Rounds() int
}

// Searcher looks for a probable prime near a source number.
//
// The search order is fixed: the source itself is tested first (so a prime
// source is returned as is), then candidates alternate outward with growing
// distance, the one above the source first (e.g. for 100 the result is 101).
// The searcher is safe for concurrent use.
type Searcher struct {
	conf   Conf
	tester PrimalityTester

	smallPrimesOnce sync.Once
	smallPrimes     *prime.SmallPrimeSet
}

// Window returns the maximum allowed distance between a source
// with the specified number of digits and the returned prime.
func (s *Searcher) Window(digits int) int64 {
	d := int64(digits)
	ans := int64(s.conf.DistanceFactor) * d * d
	if ans < s.conf.MinDistance {
		return s.conf.MinDistance
	}
	return ans
}

// FindNearbyPrime searches for a prime near src. The context is checked
// between individual candidates so the search can be cancelled at any time.
// If the context has a deadline, the search gives up with ErrSearchExhausted
// once the next candidate (and a possible confirmation of a prime) would
// not fit before the deadline.
// The function never returns a value which has not passed the primality test.
func (s *Searcher) FindNearbyPrime(ctx context.Context, src Source) Outcome {
	var ans Outcome
	if src.Value == nil || src.Value.Sign() < 0 {
		ans = Outcome{Err: ErrInvalidInput}

	} else {
		window := s.Window(src.Digits)
		sieve := s.newSieve(src, window)
		gen := newCandidates(src.Value, window, sieve)
		test := s.tester.IsProbablyPrime
		if st, ok := s.tester.(sievedTester); ok && sieve != nil {
			test = st.IsProbablyPrimeSieved
		}
		clock := newStepClock(ctx, s.confirmationSteps())
		if s.conf.Workers > 1 {
			ans = s.findParallel(ctx, gen, test, clock)

		} else {
			ans = s.findSequential(ctx, gen, test, clock)
		}
	}
	examinedCandidates.Observe(float64(ans.Examined))
	searchOutcomes.WithLabelValues(ans.resultLabel()).Inc()
	return ans
}

func (s *Searcher) confirmationSteps() int {
	if rr, ok := s.tester.(roundsReporter); ok && rr.Rounds() > 0 {
		return rr.Rounds()
	}
	return 1
}

func (s *Searcher) budgetLeft(examined int) int {
	if s.conf.MaxCandidates <= 0 {
		return -1
	}
	return s.conf.MaxCandidates - examined
}

func (s *Searcher) findSequential(
	ctx context.Context,
	gen *candidates,
	test func(*big.Int) bool,
	clock *stepClock,
) Outcome {
	var examined int
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{Examined: examined, Err: err}
		}
		if s.budgetLeft(examined) == 0 || !clock.nextStepFits() {
			return Outcome{Examined: examined, Err: ErrSearchExhausted}
		}
		cand, ok := gen.next()
		if !ok {
			return Outcome{Examined: examined, Err: ErrSearchExhausted}
		}
		examined++
		t0 := time.Now()
		if test(cand.value) {
			return Outcome{Prime: cand.value, Offset: cand.offset, Examined: examined}
		}
		clock.record(time.Since(t0))
	}
}

// findParallel tests candidates in batches. Within a batch, the first
// prime in the search order wins so the result is the same as with
// findSequential.
func (s *Searcher) findParallel(
	ctx context.Context,
	gen *candidates,
	test func(*big.Int) bool,
	clock *stepClock,
) Outcome {
	var examined int
	batch := make([]candidate, 0, s.conf.Workers)
	results := make([]bool, s.conf.Workers)
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{Examined: examined, Err: err}
		}
		batchSize := s.conf.Workers
		if left := s.budgetLeft(examined); left == 0 {
			return Outcome{Examined: examined, Err: ErrSearchExhausted}

		} else if left > 0 && left < batchSize {
			batchSize = left
		}
		if !clock.nextStepFits() {
			return Outcome{Examined: examined, Err: ErrSearchExhausted}
		}
		batch = batch[:0]
		for len(batch) < batchSize {
			cand, ok := gen.next()
			if !ok {
				break
			}
			batch = append(batch, cand)
		}
		if len(batch) == 0 {
			return Outcome{Examined: examined, Err: ErrSearchExhausted}
		}
		t0 := time.Now()
		var eg errgroup.Group
		for i, cand := range batch {
			eg.Go(func() error {
				results[i] = test(cand.value)
				return nil
			})
		}
		eg.Wait()
		for i, cand := range batch {
			if results[i] {
				return Outcome{Prime: cand.value, Offset: cand.offset, Examined: examined + i + 1}
			}
		}
		clock.record(time.Since(t0))
		examined += len(batch)
	}
}

func NewSearcher(conf Conf, tester PrimalityTester) *Searcher {
	if conf.Workers <= 0 {
		conf.Workers = 1
	}
	return &Searcher{
		conf:   conf,
		tester: tester,
	}
}
