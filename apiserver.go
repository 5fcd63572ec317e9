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
	"fmt"
	"net/http"
	"time"

	"nearprime/cnf"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, v := range allowedOrigins {
		allowed[v] = true
	}
	return func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type")
			ctx.Writer.Header().Add("Vary", "Origin")
		}
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

func newEngine(conf *cnf.Conf, actions *Actions) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware())
	engine.Use(gzipMiddleware())
	engine.Use(corsMiddleware(conf.CORSAllowedOrigins))
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(actions.RouteNotFound)
	engine.NoRoute(actions.RouteNotFound)

	engine.GET("/ok", actions.Ok)
	engine.POST("/primes", actions.Primes)
	if actions.Prefetch != nil {
		engine.POST("/prefetch", actions.PrefetchNumbers)
	}
	engine.GET("/overview", actions.Overview)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}

type apiServer struct {
	server  *http.Server
	conf    *cnf.Conf
	actions *Actions
}

func (api *apiServer) Start(ctx context.Context) {
	if !api.conf.LogLevel.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}
	api.server = &http.Server{
		Handler:      newEngine(api.conf, api.actions),
		Addr:         fmt.Sprintf("%s:%d", api.conf.ListenAddress, api.conf.ListenPort),
		WriteTimeout: time.Duration(api.conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(api.conf.ServerReadTimeoutSecs) * time.Second,
	}
	log.Info().Msgf("starting to listen at %s:%d", api.conf.ListenAddress, api.conf.ListenPort)
	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
}

func (api *apiServer) Stop(ctx context.Context) error {
	log.Warn().Msg("shutting down http api server")
	return api.server.Shutdown(ctx)
}
