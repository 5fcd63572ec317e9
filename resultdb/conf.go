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
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendDummy  = "dummy"

	dfltSQLitePath   = "nearprime.db"
	dfltCacheTTLSecs = 3600
)

type Conf struct {

	// Backend is one of "sqlite" (default), "mysql", "dummy"
	Backend    string  `json:"backend"`
	SQLitePath string  `json:"sqlitePath"`
	MySQL      *DBConf `json:"mysql"`

	// CacheTTLSecs specifies how long results stay in Redis
	// (used only in case Redis is configured)
	CacheTTLSecs int `json:"cacheTtlSecs"`

	// KnownFilterStatePath is a file where the known numerals filter
	// stores its state. Empty value disables the filter. The filter
	// cannot be used with the mysql backend as other instances may
	// write into the same database.
	KnownFilterStatePath string `json:"knownFilterStatePath"`
}

func (conf *Conf) CacheTTL() time.Duration {
	return time.Duration(conf.CacheTTLSecs) * time.Second
}

func (conf *Conf) ValidateAndDefaults() error {
	if conf == nil {
		return fmt.Errorf("missing `resultDb` section")
	}
	if conf.Backend == "" {
		conf.Backend = BackendSQLite
		log.Warn().
			Str("value", conf.Backend).
			Msg("resultDb value `backend` not set, using default")
	}
	switch conf.Backend {
	case BackendSQLite:
		if conf.SQLitePath == "" {
			conf.SQLitePath = dfltSQLitePath
			log.Warn().
				Str("value", conf.SQLitePath).
				Msg("resultDb value `sqlitePath` not set, using default")
		}
	case BackendMySQL:
		if conf.MySQL == nil {
			return fmt.Errorf("resultDb backend `mysql` requires the `mysql` section")
		}
		if err := conf.MySQL.ValidateAndDefaults(); err != nil {
			return fmt.Errorf("invalid resultDb.mysql section: %w", err)
		}
	case BackendDummy:
		log.Warn().Msg("using dummy result store, results will not be persisted")
	default:
		return fmt.Errorf("unknown resultDb backend `%s`", conf.Backend)
	}
	if conf.CacheTTLSecs < 0 {
		return fmt.Errorf("resultDb value `cacheTtlSecs` must be >= 0")
	}
	if conf.CacheTTLSecs == 0 {
		conf.CacheTTLSecs = dfltCacheTTLSecs
		log.Warn().
			Int("value", conf.CacheTTLSecs).
			Msg("resultDb value `cacheTtlSecs` not set, using default")
	}
	if conf.KnownFilterStatePath != "" && conf.Backend == BackendMySQL {
		return fmt.Errorf("resultDb value `knownFilterStatePath` cannot be used with the `mysql` backend")
	}
	return nil
}
