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
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

const (
	dfltMySQLPort     = 3306
	dfltMySQLPoolSize = 10
)

type DBConf struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	PoolSize int    `json:"poolSize"`
}

func (conf *DBConf) ValidateAndDefaults() error {
	if conf.Host == "" || conf.Name == "" || conf.User == "" {
		return fmt.Errorf("missing MySQL host, name or user")
	}
	if conf.Port == 0 {
		conf.Port = dfltMySQLPort
	}
	if conf.PoolSize == 0 {
		conf.PoolSize = dfltMySQLPoolSize
		log.Warn().
			Int("value", conf.PoolSize).
			Msg("mysql value `poolSize` not set, using default")
	}
	return nil
}

func DBOpen(conf *DBConf) (*sql.DB, error) {
	mconf := mysql.NewConfig()
	mconf.Net = "tcp"
	mconf.Addr = fmt.Sprintf("%s:%d", conf.Host, conf.Port)
	mconf.User = conf.User
	mconf.Passwd = conf.Password
	mconf.DBName = conf.Name
	mconf.ParseTime = true
	mconf.Loc = time.UTC
	mconf.Params = map[string]string{"autocommit": "true"}
	db, err := sql.Open("mysql", mconf.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sql database: %w", err)
	}
	db.SetMaxOpenConns(conf.PoolSize)
	return db, nil
}

/*
Expected table:

CREATE TABLE prime_results (
  source_number TEXT NOT NULL,
  source_hash CHAR(64) AS (SHA2(source_number, 256)) STORED,
  result TEXT NOT NULL,
  duration DOUBLE NOT NULL,
  created DATETIME NOT NULL,
  PRIMARY KEY (source_hash)
);
*/

// MySQLStore keeps results in a shared MySQL/MariaDB database.
type MySQLStore struct {
	db *sql.DB
}

func (store *MySQLStore) LookupSourceNumber(ctx context.Context, numeral string) (string, error) {
	row := store.db.QueryRowContext(
		ctx,
		"SELECT result FROM "+resultsTable+" WHERE source_hash = SHA2(?, 256) AND source_number = ?",
		numeral, numeral,
	)
	var ans string
	if err := row.Scan(&ans); errors.Is(err, sql.ErrNoRows) {
		return "", ErrRecordNotFound

	} else if err != nil {
		return "", fmt.Errorf("failed to look up source number: %w", err)
	}
	return ans, nil
}

func (store *MySQLStore) InsertResult(ctx context.Context, rec Result) error {
	_, err := store.db.ExecContext(
		ctx,
		"INSERT IGNORE INTO "+resultsTable+" (source_number, result, duration, created) "+
			"VALUES (?, ?, ?, ?)",
		rec.SourceNumber, rec.Result, rec.Duration, rec.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (store *MySQLStore) Close() error {
	return store.db.Close()
}

func NewMySQLStore(conf *DBConf) (*MySQLStore, error) {
	db, err := DBOpen(conf)
	if err != nil {
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}
