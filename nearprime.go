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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"nearprime/cnf"
	"nearprime/meter"
	"nearprime/prefetch"
	"nearprime/prime"
	"nearprime/publish"
	"nearprime/redisdb"
	"nearprime/reporting"
	"nearprime/resultdb"
	"nearprime/search"
	"nearprime/service"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 10 * time.Second
)

var (
	version   string
	buildDate string
	gitCommit string
)

type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

type bgService interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func newSearcher(conf *cnf.Conf) *search.Searcher {
	return search.NewSearcher(*conf.Search, prime.NewTester(*conf.Primality))
}

func runFind(conf *cnf.Conf, numeral string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, conf.Search.Timeout())
	defer cancel()

	src, _, err := search.ParseNumeral(numeral, conf.Search.MaxSourceDigits)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid source number")
	}
	t0 := time.Now()
	outcome := newSearcher(conf).FindNearbyPrime(ctx, src)
	if !outcome.Found() {
		log.Fatal().
			Err(outcome.Err).
			Int("numExamined", outcome.Examined).
			Msg("no prime found")
	}
	log.Info().
		Int("sourceDigits", src.Digits).
		Int("numExamined", outcome.Examined).
		Int64("offset", outcome.Offset).
		Dur("duration", time.Since(t0)).
		Msg("found nearby prime")
	fmt.Println(outcome.Prime.String())
}

func runService(conf *cnf.Conf, ver VersionInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rds *redisdb.RedisAdapter
	var cache resultdb.KeyValueCache
	var hashPublisher publish.HashPublisher
	if conf.Redis.IsConfigured() {
		rds = redisdb.NewRedisAdapter(conf.Redis)
		if err := rds.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Redis not available yet")
		}
		log.Info().Str("adapter", rds.String()).Msg("using Redis")
		cache = rds
		hashPublisher = rds
		defer rds.Close()
	}

	store, err := resultdb.NewStore(ctx, conf.ResultDB, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize result store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close result store")
		}
	}()

	sink, err := publish.NewSink(ctx, conf.Publish, hashPublisher)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize publication sink")
	}
	if pg, ok := sink.(*publish.PgSink); ok {
		defer pg.Close()
	}

	var rep reporting.IReporting
	if conf.Reporting != nil {
		rep, err = reporting.NewStatusWriter(*conf.Reporting, conf.TimezoneLocation())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize reporting")
		}

	} else {
		rep = &reporting.DummyWriter{}
	}

	meterCh := make(chan reporting.SearchStats, conf.MeterBufferSize)
	statsMeter, err := meter.NewMeter(conf.StatsFilePath, meterCh)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize stats meter")
	}

	primeService := service.NewPrimeService(
		conf.Search,
		newSearcher(conf),
		store,
		sink,
		rep,
		meterCh,
	)

	services := []bgService{rep, statsMeter}
	var prefetchQueue PrefetchQueue
	if conf.PrefetchEnabled() {
		job := prefetch.NewJob(
			conf.Prefetch,
			rds,
			primeService,
			rep,
			conf.Search.MaxSourceDigits,
			conf.TimezoneLocation(),
		)
		services = append(services, job)
		prefetchQueue = job
	}
	server := &apiServer{
		conf:    conf,
		actions: NewActions(primeService, prefetchQueue, ver, conf.Search.MaxSourceDigits),
	}
	services = append(services, server)

	for _, s := range services {
		s.Start(ctx)
	}
	<-ctx.Done()
	log.Warn().Msg("shutdown request received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("failed to stop some services properly")
	}
	log.Info().Msg("nearprime stopped")
}

func main() {
	ver := VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nearprime - find a prime number near a (large) number\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n\t%s [options] start [config.json]\n\t", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "%s [options] find [config.json] [number]\n\t", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "%s [options] version\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	action := flag.Arg(0)
	if action == "version" {
		fmt.Printf("nearprime %s\nbuild date: %s\nlast commit: %s\n", ver.Version, ver.BuildDate, ver.GitCommit)
		return
	}
	conf := cnf.LoadConfig(flag.Arg(1))
	logging.SetupLogging(conf.LogFile, conf.LogLevel)
	cnf.ValidateAndDefaults(conf)

	switch action {
	case "start":
		log.Info().Msg("Starting nearprime")
		runService(conf, ver)
	case "find":
		runFind(conf, flag.Arg(2))
	default:
		log.Fatal().Msgf("Unknown action %s", action)
	}
}
