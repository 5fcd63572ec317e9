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

// Package service resolves requests for nearby primes. It glues
// together the search engine, the result store and the publication sink.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"nearprime/publish"
	"nearprime/reporting"
	"nearprime/resultdb"
	"nearprime/search"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	storeOpsTimeout = 10 * time.Second
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrCandidateNotFound = errors.New("candidate prime not found")
	ErrSearchCancelled   = errors.New("search cancelled or timed out")
)

// Finder is the nearby prime search engine.
type Finder interface {
	FindNearbyPrime(ctx context.Context, src search.Source) search.Outcome
}

type Request struct {
	Numeral string `json:"number"`
	PostID  string `json:"postId"`
}

type Response struct {
	RequestID string `json:"requestId"`
	Prime     string `json:"prime"`
	Cached    bool   `json:"cached"`

	// Examined and Offset are filled only for computed (not cached) results
	Examined int           `json:"examined"`
	Offset   int64         `json:"offset"`
	Duration time.Duration `json:"duration"`
}

// Overview contains cumulative counters since the service start.
type Overview struct {
	NumRequests  int64 `json:"numRequests"`
	NumCached    int64 `json:"numCached"`
	NumSearched  int64 `json:"numSearched"`
	NumNotFound  int64 `json:"numNotFound"`
	NumCancelled int64 `json:"numCancelled"`
	NumInvalid   int64 `json:"numInvalid"`
}

type counters struct {
	requests  atomic.Int64
	cached    atomic.Int64
	searched  atomic.Int64
	notFound  atomic.Int64
	cancelled atomic.Int64
	invalid   atomic.Int64
}

type PrimeService struct {
	finder    Finder
	store     resultdb.ResultStore
	sink      publish.Sink
	reporting reporting.IReporting
	meterCh   chan<- reporting.SearchStats
	slots     *semaphore.Weighted
	timeout   time.Duration
	maxDigits int
	counters  counters
}

// Resolve finds a prime near req.Numeral and publishes it for req.PostID.
// Publication and result store failures are logged only, they never
// change the response.
func (s *PrimeService) Resolve(ctx context.Context, req Request) (Response, error) {
	s.counters.requests.Add(1)
	if strings.TrimSpace(req.PostID) == "" {
		s.counters.invalid.Add(1)
		return Response{}, fmt.Errorf("%w: missing postId", ErrInvalidInput)
	}
	resp, canonical, err := s.resolve(ctx, req.Numeral)
	if err != nil {
		return resp, err
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeOpsTimeout)
	defer cancel()
	err = s.sink.Publish(pctx, publish.Publication{PostID: req.PostID, PrimeNumberString: resp.Prime})
	if err != nil {
		log.Error().
			Err(err).
			Str("requestId", resp.RequestID).
			Str("postId", req.PostID).
			Msg("failed to publish prime, continuing")
	}
	s.storeResult(ctx, canonical, resp)
	return resp, nil
}

// Precompute makes sure a result for the numeral is stored
// so later requests are answered from the cache.
func (s *PrimeService) Precompute(ctx context.Context, numeral string) (Response, error) {
	s.counters.requests.Add(1)
	resp, canonical, err := s.resolve(ctx, numeral)
	if err != nil {
		return resp, err
	}
	s.storeResult(ctx, canonical, resp)
	return resp, nil
}

func (s *PrimeService) Overview() Overview {
	return Overview{
		NumRequests:  s.counters.requests.Load(),
		NumCached:    s.counters.cached.Load(),
		NumSearched:  s.counters.searched.Load(),
		NumNotFound:  s.counters.notFound.Load(),
		NumCancelled: s.counters.cancelled.Load(),
		NumInvalid:   s.counters.invalid.Load(),
	}
}

// resolve answers from the result store or runs the search. It returns
// the canonical form of the numeral along with the response.
// The caller counts the request.
func (s *PrimeService) resolve(ctx context.Context, numeral string) (Response, string, error) {
	t0 := time.Now()
	src, canonical, err := search.ParseNumeral(numeral, s.maxDigits)
	if err != nil {
		s.counters.invalid.Add(1)
		return Response{}, "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	resp := Response{RequestID: uuid.New().String()}
	stats := reporting.SearchStats{RequestID: resp.RequestID, Digits: src.Digits}
	defer func() {
		stats.Duration = time.Since(t0)
		s.emitStats(stats)
	}()

	cached, err := s.store.LookupSourceNumber(ctx, canonical)
	if err == nil {
		s.counters.cached.Add(1)
		resp.Prime = cached
		resp.Cached = true
		resp.Duration = time.Since(t0)
		stats.Cached = true
		stats.Found = true
		resolveDuration.WithLabelValues("cache").Observe(resp.Duration.Seconds())
		log.Debug().
			Str("requestId", resp.RequestID).
			Int("sourceDigits", src.Digits).
			Msg("answered from result cache")
		return resp, canonical, nil

	} else if !errors.Is(err, resultdb.ErrRecordNotFound) {
		log.Error().Err(err).Str("requestId", resp.RequestID).Msg("result cache lookup failed, searching")
	}

	outcome, err := s.search(ctx, src)
	stats.Examined = outcome.Examined
	if err != nil {
		log.Warn().
			Err(err).
			Str("requestId", resp.RequestID).
			Int("sourceDigits", src.Digits).
			Int("numExamined", outcome.Examined).
			Msg("nearby prime search failed")
		return resp, canonical, err
	}
	s.counters.searched.Add(1)
	stats.Found = true
	resp.Prime = outcome.Prime.String()
	resp.Examined = outcome.Examined
	resp.Offset = outcome.Offset
	resp.Duration = time.Since(t0)
	resolveDuration.WithLabelValues("search").Observe(resp.Duration.Seconds())
	log.Info().
		Str("requestId", resp.RequestID).
		Int("sourceDigits", src.Digits).
		Int("numExamined", outcome.Examined).
		Int64("offset", outcome.Offset).
		Dur("duration", resp.Duration).
		Msg("found nearby prime")
	return resp, canonical, nil
}

// storeResult inserts a freshly computed result into the result store.
// Cached responses are not stored again.
func (s *PrimeService) storeResult(ctx context.Context, canonical string, resp Response) {
	if resp.Cached {
		return
	}
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeOpsTimeout)
	defer cancel()
	err := s.store.InsertResult(ictx, resultdb.Result{
		SourceNumber: canonical,
		Result:       resp.Prime,
		Duration:     resp.Duration.Seconds(),
		Created:      time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("requestId", resp.RequestID).Msg("failed to store result, continuing")
	}
}

// search runs the search engine within a free search slot
// and with the configured deadline.
func (s *PrimeService) search(ctx context.Context, src search.Source) (search.Outcome, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.counters.cancelled.Add(1)
		return search.Outcome{}, fmt.Errorf("%w: %w", ErrSearchCancelled, err)
	}
	defer s.slots.Release(1)
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	outcome := s.finder.FindNearbyPrime(sctx, src)
	switch {
	case outcome.Found():
		return outcome, nil
	case outcome.Exhausted():
		s.counters.notFound.Add(1)
		return outcome, fmt.Errorf("%w: no prime within the search limits", ErrCandidateNotFound)
	case errors.Is(outcome.Err, search.ErrInvalidInput):
		s.counters.invalid.Add(1)
		return outcome, fmt.Errorf("%w: %s", ErrInvalidInput, outcome.Err)
	default:
		s.counters.cancelled.Add(1)
		return outcome, fmt.Errorf("%w: %w", ErrSearchCancelled, outcome.Err)
	}
}

func (s *PrimeService) emitStats(stats reporting.SearchStats) {
	s.reporting.WriteSearchStatus(stats)
	if s.meterCh == nil {
		return
	}
	select {
	case s.meterCh <- stats:
	default:
		log.Warn().Str("requestId", stats.RequestID).Msg("stats meter busy, record dropped")
	}
}

// NewPrimeService creates the service. The meterCh may be nil
// in case no stats meter is running.
func NewPrimeService(
	conf *search.Conf,
	finder Finder,
	store resultdb.ResultStore,
	sink publish.Sink,
	rep reporting.IReporting,
	meterCh chan<- reporting.SearchStats,
) *PrimeService {
	return &PrimeService{
		finder:    finder,
		store:     store,
		sink:      sink,
		reporting: rep,
		meterCh:   meterCh,
		slots:     semaphore.NewWeighted(int64(conf.MaxConcurrentSearches)),
		timeout:   conf.Timeout(),
		maxDigits: conf.MaxSourceDigits,
	}
}
