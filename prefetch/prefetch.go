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

// Package prefetch contains a background job which precomputes
// nearby primes for queued numerals so later requests are
// answered from the result cache.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nearprime/reporting"
	"nearprime/search"
	"nearprime/service"

	"github.com/czcorpus/cnc-gokit/collections"
	"github.com/rs/zerolog/log"
)

const requeueTimeout = 10 * time.Second

var ErrQueueFull = errors.New("prefetch queue full")

// Queue is a persistent FIFO of numerals (see redisdb.RedisAdapter).
type Queue interface {
	MkKey(parts ...string) string
	QueuePush(ctx context.Context, queue string, items ...string) error
	QueueLen(ctx context.Context, queue string) (int, error)
	NextNItems(ctx context.Context, queue string, n int64) ([]string, error)
}

type Resolver interface {
	Precompute(ctx context.Context, numeral string) (service.Response, error)
}

type JobStats struct {
	reporting.PrefetchStats
	LastCheck time.Time `json:"lastCheck"`
}

type Job struct {
	conf      *Conf
	queue     Queue
	queueKey  string
	resolver  Resolver
	reporting reporting.IReporting
	maxDigits int
	tz        *time.Location
	now       func() time.Time

	statsLock sync.Mutex
	stats     JobStats
}

func (job *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(job.conf.CheckIntervalDur())
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("about to close prefetch Job")
				return
			case <-ticker.C:
				if err := job.performCheck(ctx); err != nil {
					log.Error().Err(err).Msg("prefetch check failed")
				}
			}
		}
	}()
}

func (job *Job) Stop(ctx context.Context) error {
	log.Warn().Msg("stopping prefetch Job")
	return nil
}

func (job *Job) GetStats() JobStats {
	job.statsLock.Lock()
	defer job.statsLock.Unlock()
	return job.stats
}

// Enqueue validates numerals and adds their canonical forms
// to the queue. Either all the numerals are queued or none.
func (job *Job) Enqueue(ctx context.Context, numerals []string) (int, error) {
	canonical := make([]string, 0, len(numerals))
	for i, num := range numerals {
		_, cn, err := search.ParseNumeral(num, job.maxDigits)
		if err != nil {
			return 0, fmt.Errorf("%w: item %d: %s", service.ErrInvalidInput, i, err)
		}
		canonical = append(canonical, cn)
	}
	qlen, err := job.queue.QueueLen(ctx, job.queueKey)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue numerals: %w", err)
	}
	if qlen+len(canonical) > job.conf.MaxQueueLength {
		return 0, fmt.Errorf("%w: %d items waiting", ErrQueueFull, qlen)
	}
	if err := job.queue.QueuePush(ctx, job.queueKey, canonical...); err != nil {
		return 0, fmt.Errorf("failed to enqueue numerals: %w", err)
	}
	return len(canonical), nil
}

func (job *Job) performCheck(ctx context.Context) error {
	now := job.now().In(job.tz)
	chunk := job.conf.ChunkSize(now)
	items, err := job.queue.NextNItems(ctx, job.queueKey, int64(chunk))
	log.Debug().
		AnErr("error", err).
		Int("itemsToProcess", len(items)).
		Msg("doing regular prefetch check")
	if err != nil {
		return fmt.Errorf("failed to fetch next queued chunk: %w", err)
	}
	var currStats reporting.PrefetchStats
	var unprocessed []string
	visited := collections.NewSet[string]()
	for i, item := range items {
		if ctx.Err() != nil {
			unprocessed = items[i:]
			break
		}
		if visited.Contains(item) {
			currStats.NumFetched++
			currStats.NumCached++
			continue
		}
		resp, err := job.resolver.Precompute(ctx, item)
		if errors.Is(err, service.ErrSearchCancelled) && ctx.Err() != nil {
			unprocessed = items[i:]
			break
		}
		visited.Add(item)
		currStats.NumFetched++
		switch {
		case err == nil && resp.Cached:
			currStats.NumCached++
		case err == nil:
			currStats.NumInserted++
		case errors.Is(err, service.ErrCandidateNotFound):
			currStats.NumNotFound++
		default:
			log.Error().
				Err(err).
				Int("sourceDigits", len(item)).
				Msg("failed to precompute prime, skipping")
			currStats.NumErrors++
		}
	}
	if len(unprocessed) > 0 {
		job.requeue(ctx, unprocessed)
	}
	if currStats.ShowsActivity() {
		log.Info().
			Int("numFetched", currStats.NumFetched).
			Int("numCached", currStats.NumCached).
			Int("numInserted", currStats.NumInserted).
			Int("numNotFound", currStats.NumNotFound).
			Int("numErrors", currStats.NumErrors).
			Msg("regular prefetch report")
		job.reporting.WritePrefetchStatus(currStats)
	}
	job.statsLock.Lock()
	job.stats.UpdateBy(currStats)
	job.stats.LastCheck = now
	job.statsLock.Unlock()
	return nil
}

// requeue returns items of an interrupted chunk to the queue
// so a later check processes them.
func (job *Job) requeue(ctx context.Context, items []string) {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()
	if err := job.queue.QueuePush(qctx, job.queueKey, items...); err != nil {
		log.Error().
			Err(err).
			Int("numUnprocessed", len(items)).
			Msg("failed to return unprocessed items to the prefetch queue")
		return
	}
	log.Warn().
		Int("numUnprocessed", len(items)).
		Msg("prefetch check interrupted, unprocessed items returned to the queue")
}

func NewJob(
	conf *Conf,
	queue Queue,
	resolver Resolver,
	rep reporting.IReporting,
	maxDigits int,
	tz *time.Location,
) *Job {
	return &Job{
		conf:      conf,
		queue:     queue,
		queueKey:  queue.MkKey(conf.QueueKey),
		resolver:  resolver,
		reporting: rep,
		maxDigits: maxDigits,
		tz:        tz,
		now:       time.Now,
	}
}
