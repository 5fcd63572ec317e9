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

// Package cnf contains the application configuration
// as loaded from a JSON file.
package cnf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"nearprime/prefetch"
	"nearprime/prime"
	"nearprime/publish"
	"nearprime/redisdb"
	"nearprime/resultdb"
	"nearprime/search"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/hltscl"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerReadTimeoutSecs  = 10
	dfltServerWriteTimeoutSecs = 330
	dfltListenPort             = 8080
	dfltTimeZone               = "UTC"
	dfltLogLevel               = "info"
	dfltMeterBufferSize        = 100
)

type Conf struct {
	srcPath                string
	ListenAddress          string           `json:"listenAddress"`
	ListenPort             int              `json:"listenPort"`
	ServerReadTimeoutSecs  int              `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int              `json:"serverWriteTimeoutSecs"`
	LogFile                string           `json:"logFile"`
	LogLevel               logging.LogLevel `json:"logLevel"`
	TimeZone               string           `json:"timeZone"`
	CORSAllowedOrigins     []string         `json:"corsAllowedOrigins"`

	Primality *prime.Conf        `json:"primality"`
	Search    *search.Conf       `json:"search"`
	ResultDB  *resultdb.Conf     `json:"resultDb"`
	Redis     *redisdb.RedisConf `json:"redis"`
	Publish   *publish.Conf      `json:"publish"`
	Prefetch  *prefetch.Conf     `json:"prefetch"`
	Reporting *hltscl.PgConf     `json:"reporting"`

	// StatsFilePath is a JSONL file for per-request statistics.
	// Empty value means no statistics file is written.
	StatsFilePath   string `json:"statsFilePath"`
	MeterBufferSize int    `json:"meterBufferSize"`
}

func (conf *Conf) SrcPath() string {
	return conf.srcPath
}

func (conf *Conf) TimezoneLocation() *time.Location {
	// we can ignore the error here as we've already checked
	// the location validity during config validation
	loc, _ := time.LoadLocation(conf.TimeZone)
	return loc
}

// PrefetchEnabled tells whether the prefetch job can run.
// The job requires Redis for its queue.
func (conf *Conf) PrefetchEnabled() bool {
	return conf.Prefetch != nil && conf.Redis.IsConfigured()
}

// LoadConfigFile loads a configuration from a JSON file. No validation
// is performed.
func LoadConfigFile(path string) (*Conf, error) {
	if path == "" {
		return nil, fmt.Errorf("cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	var conf Conf
	conf.srcPath = path
	if err := json.Unmarshal(rawData, &conf); err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	return &conf, nil
}

// LoadConfig loads a configuration and exits in case of an error.
func LoadConfig(path string) *Conf {
	conf, err := LoadConfigFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	return conf
}

// Validate checks the configuration and fills default values.
// Missing optional sections are created with defaults.
func Validate(conf *Conf) error {
	if conf.ListenPort == 0 {
		conf.ListenPort = dfltListenPort
		log.Warn().
			Int("value", conf.ListenPort).
			Msg("listenPort not specified, using default")
	}
	if conf.ServerReadTimeoutSecs == 0 {
		conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
		log.Warn().
			Int("value", conf.ServerReadTimeoutSecs).
			Msg("serverReadTimeoutSecs not specified, using default")
	}
	if conf.LogLevel == "" {
		conf.LogLevel = dfltLogLevel
	}
	if conf.TimeZone == "" {
		conf.TimeZone = dfltTimeZone
		log.Warn().
			Str("timeZone", conf.TimeZone).
			Msg("time zone not specified, using default")
	}
	if _, err := time.LoadLocation(conf.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %s: %w", conf.TimeZone, err)
	}

	if conf.Primality == nil {
		conf.Primality = &prime.Conf{}
	}
	if err := conf.Primality.ValidateAndDefaults(); err != nil {
		return fmt.Errorf("invalid primality configuration: %w", err)
	}
	if conf.Search == nil {
		conf.Search = &search.Conf{}
	}
	if err := conf.Search.ValidateAndDefaults(); err != nil {
		return fmt.Errorf("invalid search configuration: %w", err)
	}
	// a single search must fit into the response write timeout
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = max(dfltServerWriteTimeoutSecs, conf.Search.TimeoutSecs+30)
		log.Warn().
			Int("value", conf.ServerWriteTimeoutSecs).
			Msg("serverWriteTimeoutSecs not specified, using default")
	}
	if conf.ServerWriteTimeoutSecs <= conf.Search.TimeoutSecs {
		log.Warn().
			Int("serverWriteTimeoutSecs", conf.ServerWriteTimeoutSecs).
			Int("searchTimeoutSecs", conf.Search.TimeoutSecs).
			Msg("server write timeout is shorter than search timeout, long searches will fail")
	}
	if conf.ResultDB == nil {
		conf.ResultDB = &resultdb.Conf{}
	}
	if err := conf.ResultDB.ValidateAndDefaults(); err != nil {
		return fmt.Errorf("invalid resultDb configuration: %w", err)
	}
	if err := conf.Redis.ValidateAndDefaults(); err != nil {
		return fmt.Errorf("invalid redis configuration: %w", err)
	}
	if conf.Publish == nil {
		conf.Publish = &publish.Conf{}
	}
	if err := conf.Publish.ValidateAndDefaults(); err != nil {
		return fmt.Errorf("invalid publish configuration: %w", err)
	}
	if conf.Publish.Sink == publish.SinkRedis && !conf.Redis.IsConfigured() {
		return fmt.Errorf("publish sink `redis` requires the `redis` section")
	}
	if conf.Prefetch != nil {
		if !conf.Redis.IsConfigured() {
			log.Warn().Msg("prefetch requires Redis, the job will be disabled")

		} else if err := conf.Prefetch.ValidateAndDefaults(); err != nil {
			return fmt.Errorf("invalid prefetch configuration: %w", err)
		}
	}
	if conf.Reporting == nil {
		log.Warn().Msg("reporting not configured, using dummy reporting")
	}
	if conf.MeterBufferSize == 0 {
		conf.MeterBufferSize = dfltMeterBufferSize
	}
	return nil
}

// ValidateAndDefaults validates the configuration and exits
// in case of an error.
func ValidateAndDefaults(conf *Conf) {
	if err := Validate(conf); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
}
