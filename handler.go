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
	"fmt"
	"net/http"
	"time"

	"nearprime/prefetch"
	"nearprime/search"
	"nearprime/service"

	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	codeInvalidArgument   = "INVALID_ARGUMENT"
	codeCandidateNotFound = "CANDIDATE_PRIME_NOT_FOUND"
	codeSearchTimeout     = "SEARCH_TIMEOUT"
	codeRouteNotFound     = "ROUTE_NOT_FOUND"
	codeInternalError     = "INTERNAL_SERVER_ERROR"
	codePrefetchQueueFull = "PREFETCH_QUEUE_FULL"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func respondWithError(ctx *gin.Context, status int, code, message string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// ------

type primesArgs struct {
	Number any `json:"number"`
	PostID any `json:"postId"`
}

type prefetchArgs struct {
	Numbers []string `json:"numbers"`
}

// PrimeResolver is the part of service.PrimeService used by HTTP actions.
type PrimeResolver interface {
	Resolve(ctx context.Context, req service.Request) (service.Response, error)
	Overview() service.Overview
}

// PrefetchQueue is the part of prefetch.Job used by HTTP actions.
type PrefetchQueue interface {
	Enqueue(ctx context.Context, numerals []string) (int, error)
	GetStats() prefetch.JobStats
}

type Actions struct {
	Resolver  PrimeResolver
	Prefetch  PrefetchQueue
	Version   VersionInfo
	MaxDigits int
	started   time.Time
}

func (a *Actions) Ok(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, map[string]int64{"timestamp": time.Now().UnixMilli()})
}

func (a *Actions) Primes(ctx *gin.Context) {
	var args primesArgs
	if err := ctx.ShouldBindJSON(&args); err != nil || args.Number == nil {
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			`The "number" body argument must be provided.`)
		return
	}
	if args.PostID == nil {
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			`The "postId" body argument must be provided.`)
		return
	}
	numeral, ok := args.Number.(string)
	if !ok {
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			`"number" body argument must be a string representation of a number.`)
		return
	}
	postID, ok := args.PostID.(string)
	if !ok || postID == "" {
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			`The "postId" body argument must be a non-empty string.`)
		return
	}

	resp, err := a.Resolver.Resolve(ctx.Request.Context(), service.Request{Numeral: numeral, PostID: postID})
	switch {
	case err == nil:
		uniresp.WriteJSONResponse(ctx.Writer, resp.Prime)
	case errors.Is(err, search.ErrTooManyDigits):
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			fmt.Sprintf(`The "number" body argument must have at most %d digits.`, a.MaxDigits))
	case errors.Is(err, search.ErrInvalidNumeral):
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			`"number" body argument must be a string representation of a number.`)
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(ctx, http.StatusBadRequest, codeInvalidArgument, err.Error())
	case errors.Is(err, service.ErrCandidateNotFound):
		respondWithError(
			ctx, http.StatusBadRequest, codeCandidateNotFound,
			fmt.Sprintf("No candidate prime number found near %s.", abbreviate(numeral)))
	case errors.Is(err, service.ErrSearchCancelled):
		respondWithError(
			ctx, http.StatusServiceUnavailable, codeSearchTimeout,
			"The search for a nearby prime did not finish in time. Please try again.")
	default:
		log.Error().Err(err).Msg("failed to resolve prime request")
		respondWithError(
			ctx, http.StatusInternalServerError, codeInternalError,
			"An unexpected internal server error occurred. Please try again.")
	}
}

func (a *Actions) PrefetchNumbers(ctx *gin.Context) {
	var args prefetchArgs
	if err := ctx.ShouldBindJSON(&args); err != nil {
		respondWithError(
			ctx, http.StatusBadRequest, codeInvalidArgument,
			`The "numbers" body argument must be a list of strings.`)
		return
	}
	n, err := a.Prefetch.Enqueue(ctx.Request.Context(), args.Numbers)
	switch {
	case err == nil:
		uniresp.WriteJSONResponse(ctx.Writer, map[string]int{"queued": n})
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(ctx, http.StatusBadRequest, codeInvalidArgument, err.Error())
	case errors.Is(err, prefetch.ErrQueueFull):
		respondWithError(ctx, http.StatusServiceUnavailable, codePrefetchQueueFull, err.Error())
	default:
		log.Error().Err(err).Msg("failed to enqueue numbers")
		respondWithError(
			ctx, http.StatusInternalServerError, codeInternalError,
			"An unexpected internal server error occurred. Please try again.")
	}
}

func (a *Actions) Overview(ctx *gin.Context) {
	ans := make(map[string]any)
	ans["service"] = a.Resolver.Overview()
	if a.Prefetch != nil {
		ans["prefetch"] = a.Prefetch.GetStats()
	}
	ans["version"] = a.Version
	ans["uptime"] = time.Since(a.started).Round(time.Second).String()
	uniresp.WriteJSONResponse(ctx.Writer, ans)
}

func (a *Actions) RouteNotFound(ctx *gin.Context) {
	log.Warn().
		Str("method", ctx.Request.Method).
		Str("path", ctx.Request.URL.Path).
		Msg("route not found")
	respondWithError(
		ctx, http.StatusNotFound, codeRouteNotFound,
		fmt.Sprintf("Route not found: %s %s", ctx.Request.Method, ctx.Request.URL.Path))
}

// abbreviate shortens long numerals in messages.
func abbreviate(numeral string) string {
	if len(numeral) <= 40 {
		return numeral
	}
	return fmt.Sprintf("%s...%s (%d digits)", numeral[:15], numeral[len(numeral)-15:], len(numeral))
}

func NewActions(resolver PrimeResolver, prefetchQueue PrefetchQueue, version VersionInfo, maxDigits int) *Actions {
	return &Actions{
		Resolver:  resolver,
		Prefetch:  prefetchQueue,
		Version:   version,
		MaxDigits: maxDigits,
		started:   time.Now(),
	}
}
