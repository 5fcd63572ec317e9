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
	"fmt"
	"time"

	"nearprime/prime"

	"github.com/czcorpus/cnc-gokit/datetime"
	"github.com/rs/zerolog/log"
)

const (
	dfltQueueKey             = "prefetch_queue"
	dfltCheckInterval        = "30s"
	dfltCheckIntervalChunk   = 10
	dfltNightChunkMultiplier = 3
	dfltMaxQueueLength       = 10000
	minCheckIntervalSecs     = 2
	maxCheckIntervalChunk    = 1000
)

type Conf struct {

	// QueueKey is a Redis list (under the application key prefix)
	// where numerals for precomputation wait
	QueueKey string `json:"queueKey"`

	// CheckInterval is a string encoded interval (10s, 1m, 5m30s etc.)
	// between two queue checks. The value is tuned to a prime number
	// of seconds so it cannot be easily overlapped by other timers.
	CheckInterval string `json:"checkInterval"`

	// CheckIntervalChunk is a max. number of numerals processed
	// in one check
	CheckIntervalChunk int `json:"checkIntervalChunk"`

	// NightChunkMultiplier increases CheckIntervalChunk during
	// the night (22:00 - 05:59) when the service is less busy
	NightChunkMultiplier int `json:"nightChunkMultiplier"`

	MaxQueueLength int `json:"maxQueueLength"`

	checkIntervalSecs int
}

func (conf *Conf) CheckIntervalDur() time.Duration {
	return time.Duration(conf.checkIntervalSecs) * time.Second
}

// ChunkSize returns the number of numerals to be processed
// in a check performed at the time t.
func (conf *Conf) ChunkSize(t time.Time) int {
	if TimeIsAtNight(t) {
		return conf.CheckIntervalChunk * conf.NightChunkMultiplier
	}
	return conf.CheckIntervalChunk
}

func TimeIsAtNight(t time.Time) bool {
	return t.Hour() >= 22 || t.Hour() <= 5
}

func (conf *Conf) ValidateAndDefaults() error {
	if conf == nil {
		return fmt.Errorf("missing `prefetch` section")
	}
	if conf.QueueKey == "" {
		conf.QueueKey = dfltQueueKey
		log.Warn().
			Str("value", conf.QueueKey).
			Msg("prefetch value `queueKey` not set, using default")
	}
	if conf.CheckInterval == "" {
		conf.CheckInterval = dfltCheckInterval
		log.Warn().
			Str("value", conf.CheckInterval).
			Msg("prefetch value `checkInterval` not set, using default")
	}
	dur, err := datetime.ParseDuration(conf.CheckInterval)
	if err != nil {
		return fmt.Errorf("failed to validate prefetch checkInterval: %w", err)
	}
	secs := int(dur.Seconds())
	if secs < minCheckIntervalSecs {
		return fmt.Errorf("prefetch checkInterval must be at least %ds", minCheckIntervalSecs)
	}
	tmp, err := prime.NearestPrime(secs)
	if err != nil {
		return fmt.Errorf("failed to tune prefetch timing: %w", err)
	}
	if tmp != secs {
		log.Warn().
			Int("oldValue", secs).
			Int("newValue", tmp).
			Msg("tuned prefetch check interval (secs) so it cannot be easily overlapped by other timers")
	}
	conf.checkIntervalSecs = tmp

	if conf.CheckIntervalChunk == 0 {
		conf.CheckIntervalChunk = dfltCheckIntervalChunk
		log.Warn().
			Int("value", conf.CheckIntervalChunk).
			Msg("prefetch value `checkIntervalChunk` not set, using default")
	}
	if conf.CheckIntervalChunk < 1 || conf.CheckIntervalChunk > maxCheckIntervalChunk {
		return fmt.Errorf("invalid value for checkIntervalChunk (must be between 1 and %d)", maxCheckIntervalChunk)
	}
	if conf.NightChunkMultiplier == 0 {
		conf.NightChunkMultiplier = dfltNightChunkMultiplier
	}
	if conf.NightChunkMultiplier < 1 {
		return fmt.Errorf("prefetch value `nightChunkMultiplier` must be >= 1")
	}
	if conf.MaxQueueLength == 0 {
		conf.MaxQueueLength = dfltMaxQueueLength
		log.Warn().
			Int("value", conf.MaxQueueLength).
			Msg("prefetch value `maxQueueLength` not set, using default")
	}
	return nil
}
