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

package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

/*
Expected table (one JSON document per post):

CREATE TABLE posts (
  id TEXT PRIMARY KEY,
  data JSONB NOT NULL DEFAULT '{}'::jsonb
);
*/

// PgSink stores publications into JSONB documents in PostgreSQL.
// The field primeImage of the post document is replaced
// by {"primeNumberString": ...}, the rest of the document is preserved.
type PgSink struct {
	pool  *pgxpool.Pool
	table string
}

func (sink *PgSink) Publish(ctx context.Context, pub Publication) error {
	patch, err := json.Marshal(map[string]string{"primeNumberString": pub.PrimeNumberString})
	if err != nil {
		return fmt.Errorf("failed to publish prime for post %s: %w", pub.PostID, err)
	}
	tag, err := sink.pool.Exec(
		ctx,
		"UPDATE "+sink.table+" SET data = jsonb_set("+
			"COALESCE(data, '{}'::jsonb), '{primeImage}', $1::jsonb, true) "+
			"WHERE id = $2",
		string(patch), pub.PostID,
	)
	if err != nil {
		return fmt.Errorf("failed to publish prime for post %s: %w", pub.PostID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to publish prime for post %s: %w", pub.PostID, ErrPostNotFound)
	}
	return nil
}

func (sink *PgSink) Close() {
	sink.pool.Close()
}

func NewPgSink(ctx context.Context, conf *PgConf, table string) (*PgSink, error) {
	pool, err := pgxpool.New(ctx, conf.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("host", conf.Host).Msg("PostgreSQL not reachable yet")
	}
	return &PgSink{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
	}, nil
}
