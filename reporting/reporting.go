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

package reporting

import (
	"context"
	"time"

	"github.com/czcorpus/hltscl"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

/*
Expected tables:

create table nearprime_search_stats (
  "time" timestamp with time zone NOT NULL,
  digits int,
  examined int,
  duration float,
  cached int,
  found int
);

select create_hypertable('nearprime_search_stats', 'time');

create table nearprime_prefetch_stats (
  "time" timestamp with time zone NOT NULL,
  num_fetched int,
  num_cached int,
  num_inserted int,
  num_not_found int,
  num_errors int
);

select create_hypertable('nearprime_prefetch_stats', 'time');

*/

type writer struct {
	tableWriter *hltscl.TableWriter
	dataCh      chan<- hltscl.Entry
	errCh       <-chan hltscl.WriteError
}

func newWriter(conn *pgxpool.Pool, table string, tz *time.Location) writer {
	tw := hltscl.NewTableWriter(conn, table, "time", tz)
	dataCh, errCh := tw.Activate()
	return writer{
		tableWriter: tw,
		dataCh:      dataCh,
		errCh:       errCh,
	}
}

// StatusWriter stores search and prefetch statistics
// into TimescaleDB tables.
type StatusWriter struct {
	search   writer
	prefetch writer
	location *time.Location
}

func (job *StatusWriter) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("about to close StatusWriter")
				return
			case err := <-job.search.errCh:
				log.Error().
					Err(err.Err).
					Str("entry", err.Entry.String()).
					Msg("error writing search stats to TimescaleDB")
			case err := <-job.prefetch.errCh:
				log.Error().
					Err(err.Err).
					Str("entry", err.Entry.String()).
					Msg("error writing prefetch stats to TimescaleDB")
			}
		}
	}()
}

func (job *StatusWriter) Stop(ctx context.Context) error {
	log.Warn().Msg("stopping StatusWriter")
	return nil
}

func (job *StatusWriter) WriteSearchStatus(item SearchStats) {
	job.search.dataCh <- *job.search.tableWriter.NewEntry(time.Now().In(job.location)).
		Int("digits", item.Digits).
		Int("examined", item.Examined).
		Float("duration", item.Duration.Seconds()).
		Int("cached", boolToInt(item.Cached)).
		Int("found", boolToInt(item.Found))
}

func (job *StatusWriter) WritePrefetchStatus(item PrefetchStats) {
	job.prefetch.dataCh <- *job.prefetch.tableWriter.NewEntry(time.Now().In(job.location)).
		Int("num_fetched", item.NumFetched).
		Int("num_cached", item.NumCached).
		Int("num_inserted", item.NumInserted).
		Int("num_not_found", item.NumNotFound).
		Int("num_errors", item.NumErrors)
}

func NewStatusWriter(conf hltscl.PgConf, tz *time.Location) (*StatusWriter, error) {
	conn, err := hltscl.CreatePool(conf)
	if err != nil {
		return nil, err
	}
	return &StatusWriter{
		search:   newWriter(conn, "nearprime_search_stats", tz),
		prefetch: newWriter(conn, "nearprime_prefetch_stats", tz),
		location: tz,
	}, nil
}
