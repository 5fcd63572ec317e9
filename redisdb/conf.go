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

package redisdb

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	dfltPort      = 6379
	dfltKeyPrefix = "nearprime"
)

type RedisConf struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DB       int    `json:"db"`
	Password string `json:"password"`

	// KeyPrefix is prepended (with a colon) to all the keys
	// the application creates
	KeyPrefix string `json:"keyPrefix"`
}

// IsConfigured tells whether Redis should be used at all.
func (conf *RedisConf) IsConfigured() bool {
	return conf != nil && conf.Host != ""
}

func (conf *RedisConf) ValidateAndDefaults() error {
	if !conf.IsConfigured() {
		return nil
	}
	if conf.Port == 0 {
		conf.Port = dfltPort
		log.Warn().
			Int("value", conf.Port).
			Msg("redis value `port` not set, using default")
	}
	if conf.DB < 0 {
		return fmt.Errorf("invalid Redis database number %d", conf.DB)
	}
	if conf.KeyPrefix == "" {
		conf.KeyPrefix = dfltKeyPrefix
		log.Warn().
			Str("value", conf.KeyPrefix).
			Msg("redis value `keyPrefix` not set, using default")
	}
	return nil
}
