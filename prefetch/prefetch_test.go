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

package prefetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"nearprime/prime"
	"nearprime/publish"
	"nearprime/reporting"
	"nearprime/resultdb"
	"nearprime/search"
	"nearprime/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memQueue struct {
	mu    sync.Mutex
	items map[string][]string
}

func (mq *memQueue) MkKey(parts ...string) string {
	return "np:" + strings.Join(parts, ":")
}

func (mq *memQueue) QueuePush(ctx context.Context, queue string, items ...string) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	mq.items[queue] = append(mq.items[queue], items...)
	return nil
}

func (mq *memQueue) QueueLen(ctx context.Context, queue string) (int, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return len(mq.items[queue]), nil
}

func (mq *memQueue) NextNItems(ctx context.Context, queue string, n int64) ([]string, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	q := mq.items[queue]
	if int64(len(q)) < n {
		n = int64(len(q))
	}
	ans := q[:n]
	mq.items[queue] = q[n:]
	return ans, nil
}

func newMemQueue() *memQueue {
	return &memQueue{items: make(map[string][]string)}
}

func testJob(t *testing.T, conf *Conf) (*Job, *memQueue, *resultdb.DummyStore) {
	require.NoError(t, conf.ValidateAndDefaults())
	sconf := &search.Conf{}
	require.NoError(t, sconf.ValidateAndDefaults())
	store := resultdb.NewDummyStore()
	svc := service.NewPrimeService(
		sconf,
		search.NewSearcher(*sconf, prime.NewTester(prime.Conf{})),
		store,
		&publish.DummySink{},
		&reporting.DummyWriter{},
		nil,
	)
	queue := newMemQueue()
	job := NewJob(conf, queue, svc, &reporting.DummyWriter{}, search.MaxSourceDigits, time.UTC)
	job.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return job, queue, store
}

func TestEnqueueCanonicalizes(t *testing.T) {
	job, queue, _ := testJob(t, &Conf{})
	n, err := job.Enqueue(context.Background(), []string{"007", " 100 "})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"7", "100"}, queue.items["np:prefetch_queue"])
}

func TestEnqueueRejectsInvalid(t *testing.T) {
	job, queue, _ := testJob(t, &Conf{})
	_, err := job.Enqueue(context.Background(), []string{"100", "x1"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Empty(t, queue.items["np:prefetch_queue"])
}

func TestEnqueueQueueFull(t *testing.T) {
	job, _, _ := testJob(t, &Conf{MaxQueueLength: 3})
	_, err := job.Enqueue(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	_, err = job.Enqueue(context.Background(), []string{"3", "4"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPerformCheck(t *testing.T) {
	job, _, store := testJob(t, &Conf{CheckIntervalChunk: 3})
	_, err := job.Enqueue(context.Background(), []string{"100", "90", "100", "24"})
	require.NoError(t, err)

	require.NoError(t, job.performCheck(context.Background()))
	stats := job.GetStats()
	assert.Equal(t, 3, stats.NumFetched)
	assert.Equal(t, 2, stats.NumInserted)
	assert.Equal(t, 1, stats.NumCached)
	ans, err := store.LookupSourceNumber(context.Background(), "90")
	require.NoError(t, err)
	assert.Equal(t, "89", ans)

	require.NoError(t, job.performCheck(context.Background()))
	stats = job.GetStats()
	assert.Equal(t, 4, stats.NumFetched)
	assert.Equal(t, 3, stats.NumInserted)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), stats.LastCheck)

	// already stored
	_, err = job.Enqueue(context.Background(), []string{"24"})
	require.NoError(t, err)
	require.NoError(t, job.performCheck(context.Background()))
	assert.Equal(t, 2, job.GetStats().NumCached)
}

func TestNightChunk(t *testing.T) {
	job, queue, _ := testJob(t, &Conf{CheckIntervalChunk: 2, NightChunkMultiplier: 2})
	job.now = func() time.Time { return time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC) }
	items := make([]string, 10)
	for i := range items {
		items[i] = fmt.Sprint(i * 10)
	}
	_, err := job.Enqueue(context.Background(), items)
	require.NoError(t, err)
	require.NoError(t, job.performCheck(context.Background()))
	assert.Equal(t, 4, job.GetStats().NumFetched)
	assert.Len(t, queue.items["np:prefetch_queue"], 6)
}

type interruptingResolver struct {
	calls        []string
	interruptAt  int
	cancel       context.CancelFunc
	failOnCancel bool
}

func (ir *interruptingResolver) Precompute(ctx context.Context, numeral string) (service.Response, error) {
	ir.calls = append(ir.calls, numeral)
	if len(ir.calls) == ir.interruptAt {
		ir.cancel()
		if ir.failOnCancel {
			return service.Response{}, fmt.Errorf("%w: %w", service.ErrSearchCancelled, ctx.Err())
		}
	}
	return service.Response{Prime: numeral}, nil
}

func TestInterruptedChunkIsRequeued(t *testing.T) {
	for _, failOnCancel := range []bool{false, true} {
		conf := &Conf{CheckIntervalChunk: 5}
		require.NoError(t, conf.ValidateAndDefaults())
		ctx, cancel := context.WithCancel(context.Background())
		resolver := &interruptingResolver{interruptAt: 2, cancel: cancel, failOnCancel: failOnCancel}
		queue := newMemQueue()
		job := NewJob(conf, queue, resolver, &reporting.DummyWriter{}, search.MaxSourceDigits, time.UTC)
		job.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
		_, err := job.Enqueue(context.Background(), []string{"10", "20", "30", "40", "50", "60"})
		require.NoError(t, err)

		require.NoError(t, job.performCheck(ctx))
		assert.Equal(t, []string{"10", "20"}, resolver.calls)
		if failOnCancel {
			// the search of "20" has been cancelled so it goes back too
			assert.Equal(t, []string{"60", "20", "30", "40", "50"}, queue.items["np:prefetch_queue"])
			assert.Equal(t, 1, job.GetStats().NumFetched)
			assert.Equal(t, 0, job.GetStats().NumErrors)

		} else {
			assert.Equal(t, []string{"60", "30", "40", "50"}, queue.items["np:prefetch_queue"])
			assert.Equal(t, 2, job.GetStats().NumFetched)
		}
	}
}

func TestConfTunesInterval(t *testing.T) {
	conf := &Conf{CheckInterval: "1m"}
	require.NoError(t, conf.ValidateAndDefaults())
	assert.Equal(t, 61*time.Second, conf.CheckIntervalDur())

	conf = &Conf{}
	require.NoError(t, conf.ValidateAndDefaults())
	assert.Equal(t, 31*time.Second, conf.CheckIntervalDur())

	conf = &Conf{CheckInterval: "1s"}
	assert.Error(t, conf.ValidateAndDefaults())

	conf = &Conf{CheckInterval: "foo"}
	assert.Error(t, conf.ValidateAndDefaults())
}

func TestTimeIsAtNight(t *testing.T) {
	assert.True(t, TimeIsAtNight(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, TimeIsAtNight(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, TimeIsAtNight(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
}
