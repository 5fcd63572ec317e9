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

package resultdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps results in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func (store *SQLiteStore) init(ctx context.Context) error {
	_, err := store.db.ExecContext(
		ctx,
		"CREATE TABLE IF NOT EXISTS "+resultsTable+" ("+
			"source_number TEXT PRIMARY KEY, "+
			"result TEXT NOT NULL, "+
			"duration REAL NOT NULL, "+
			"created DATETIME NOT NULL)",
	)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", resultsTable, err)
	}
	return nil
}

func (store *SQLiteStore) LookupSourceNumber(ctx context.Context, numeral string) (string, error) {
	row := store.db.QueryRowContext(
		ctx,
		"SELECT result FROM "+resultsTable+" WHERE source_number = ?",
		numeral,
	)
	var ans string
	if err := row.Scan(&ans); errors.Is(err, sql.ErrNoRows) {
		return "", ErrRecordNotFound

	} else if err != nil {
		return "", fmt.Errorf("failed to look up source number: %w", err)
	}
	return ans, nil
}

func (store *SQLiteStore) InsertResult(ctx context.Context, rec Result) error {
	_, err := store.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO "+resultsTable+" (source_number, result, duration, created) "+
			"VALUES (?, ?, ?, ?)",
		rec.SourceNumber, rec.Result, rec.Duration, rec.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (store *SQLiteStore) CountResults(ctx context.Context) (int64, error) {
	var ans int64
	row := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+resultsTable)
	if err := row.Scan(&ans); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return ans, nil
}

func (store *SQLiteStore) ForEachSourceNumber(ctx context.Context, fn func(numeral string) error) error {
	rows, err := store.db.QueryContext(ctx, "SELECT source_number FROM "+resultsTable)
	if err != nil {
		return fmt.Errorf("failed to list source numbers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var numeral string
		if err := rows.Scan(&numeral); err != nil {
			return fmt.Errorf("failed to list source numbers: %w", err)
		}
		if err := fn(numeral); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list source numbers: %w", err)
	}
	return nil
}

func (store *SQLiteStore) Close() error {
	return store.db.Close()
}

func (store *SQLiteStore) String() string {
	return fmt.Sprintf("SQLiteStore (%s)", store.path)
}

// NewSQLiteStore opens (and if needed, initializes) a database file.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
