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
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

const (
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
	SinkDummy    = "dummy"

	dfltCollection = "posts"
	dfltPgPort     = 5432
	dfltChannel    = "nearprime_published"
)

type PgConf struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	MaxConns int    `json:"maxConns"`
}

func (conf *PgConf) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conf.User, conf.Password),
		Host:   conf.Host + ":" + strconv.Itoa(conf.Port),
		Path:   "/" + conf.Name,
	}
	if conf.MaxConns > 0 {
		q := url.Values{}
		q.Set("pool_max_conns", strconv.Itoa(conf.MaxConns))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

type Conf struct {

	// Sink is one of "postgres", "redis", "dummy" (default)
	Sink string `json:"sink"`

	// Collection is a table (postgres) or a key prefix (redis)
	// where posts live
	Collection string `json:"collection"`

	// Channel is a Redis channel where IDs of updated posts
	// are announced (redis sink only)
	Channel string `json:"channel"`

	Postgres *PgConf `json:"postgres"`
}

func (conf *Conf) ValidateAndDefaults() error {
	if conf == nil {
		return fmt.Errorf("missing `publish` section")
	}
	if conf.Sink == "" {
		conf.Sink = SinkDummy
		log.Warn().
			Str("value", conf.Sink).
			Msg("publish value `sink` not set, using default")
	}
	if conf.Collection == "" {
		conf.Collection = dfltCollection
		log.Warn().
			Str("value", conf.Collection).
			Msg("publish value `collection` not set, using default")
	}
	switch conf.Sink {
	case SinkPostgres:
		if conf.Postgres == nil || conf.Postgres.Host == "" {
			return fmt.Errorf("publish sink `postgres` requires the `postgres` section with `host`")
		}
		if conf.Postgres.Port == 0 {
			conf.Postgres.Port = dfltPgPort
		}
	case SinkRedis:
		if conf.Channel == "" {
			conf.Channel = dfltChannel
			log.Warn().
				Str("value", conf.Channel).
				Msg("publish value `channel` not set, using default")
		}
	case SinkDummy:
	default:
		return fmt.Errorf("unknown publish sink `%s`", conf.Sink)
	}
	return nil
}
