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
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"nearprime/prime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func divisibleBySome(v *big.Int, primes []uint64) bool {
	rem := new(big.Int)
	for _, p := range primes {
		if rem.Rem(v, new(big.Int).SetUint64(p)).Sign() == 0 {
			return true
		}
	}
	return false
}

func TestWindowSieveMatchesDivision(t *testing.T) {
	source, ok := new(big.Int).SetString("1000000000000000000000000012345", 10)
	require.True(t, ok)
	primes, residues := prime.NewSmallPrimeSet(1000).Residues(source, 1000)
	require.NotEmpty(t, primes)
	assert.Equal(t, uint64(3), primes[0])
	// small blocks make the walk cross many block boundaries
	ws := newWindowSieve(primes, residues, 37)
	check := func(offset int64) {
		v := new(big.Int).Add(source, big.NewInt(offset))
		assert.Equal(t, divisibleBySome(v, primes), ws.hasSmallFactor(offset), "offset %d", offset)
	}
	check(0)
	for d := int64(1); d <= 500; d++ {
		check(d)
		check(-d)
	}
}

func TestSieveOnlyForLongSources(t *testing.T) {
	searcher := newTestSearcher(defaultConf())
	short := NewSource(new(big.Int).Exp(big.NewInt(10), big.NewInt(150), nil))
	assert.Nil(t, searcher.newSieve(short, searcher.Window(short.Digits)))

	long := NewSource(new(big.Int).Exp(big.NewInt(10), big.NewInt(250), nil))
	ws := searcher.newSieve(long, searcher.Window(long.Digits))
	require.NotNil(t, ws)
	// prime gaps below 2^18 are shorter than 100
	assert.Greater(t, ws.primes[len(ws.primes)-1], uint64(250*sievePrimesPerDigit-100))

	conf := defaultConf()
	conf.SieveLimit = 0
	unsieved := newTestSearcher(conf)
	assert.Nil(t, unsieved.newSieve(long, unsieved.Window(long.Digits)))
}

func TestSieveLimitScalesWithDigits(t *testing.T) {
	searcher := newTestSearcher(defaultConf())
	assert.Equal(t, 0, searcher.sieveLimit(sieveMinDigits-1))
	assert.Equal(t, sieveMinDigits*sievePrimesPerDigit, searcher.sieveLimit(sieveMinDigits))
	assert.Equal(t, MaxSourceDigits*sievePrimesPerDigit, searcher.sieveLimit(MaxSourceDigits))

	conf := defaultConf()
	conf.SieveLimit = 100000
	capped := newTestSearcher(conf)
	assert.Equal(t, 100000, capped.sieveLimit(MaxSourceDigits))
}

func TestSievedSearchMatchesUnsieved(t *testing.T) {
	conf := defaultConf()
	sieved := newTestSearcher(conf)
	conf.SieveLimit = 0
	plain := newTestSearcher(conf)
	for _, numeral := range []string{
		"1" + strings.Repeat("0", 249),
		strings.Repeat("9", 240),
		strings.Repeat("1234567", 30),
	} {
		s, _, err := ParseNumeral(numeral, MaxSourceDigits)
		require.NoError(t, err)
		o1 := sieved.FindNearbyPrime(context.Background(), s)
		o2 := plain.FindNearbyPrime(context.Background(), s)
		require.True(t, o1.Found(), "source %s", numeral)
		require.True(t, o2.Found(), "source %s", numeral)
		assert.Equal(t, 0, o1.Prime.Cmp(o2.Prime), "source %s", numeral)
		assert.Equal(t, o2.Offset, o1.Offset)
		assert.Less(t, o1.Examined, o2.Examined)
	}
}

func TestStepClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithDeadline(context.Background(), base.Add(10*time.Second))
	defer cancel()
	clock := newStepClock(ctx, 3)
	clock.now = func() time.Time { return base }
	assert.True(t, clock.nextStepFits())
	clock.record(time.Second) // (1 + 3) * 1s * 1.25 = 5s
	assert.True(t, clock.nextStepFits())
	clock.record(3 * time.Second) // (1 + 3) * 2s * 1.25 = 10s
	assert.False(t, clock.nextStepFits())

	free := newStepClock(context.Background(), 64)
	free.record(time.Hour)
	assert.True(t, free.nextStepFits())
}
