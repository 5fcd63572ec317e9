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
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nearprime/cnf"
	"nearprime/prefetch"
	"nearprime/search"
	"nearprime/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	resp    service.Response
	err     error
	lastReq service.Request
}

func (r *fakeResolver) Resolve(ctx context.Context, req service.Request) (service.Response, error) {
	r.lastReq = req
	return r.resp, r.err
}

func (r *fakeResolver) Overview() service.Overview {
	return service.Overview{NumRequests: 3}
}

type fakeQueue struct {
	items []string
	err   error
}

func (q *fakeQueue) Enqueue(ctx context.Context, numerals []string) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.items = append(q.items, numerals...)
	return len(numerals), nil
}

func (q *fakeQueue) GetStats() prefetch.JobStats {
	return prefetch.JobStats{}
}

func newTestEngine(resolver PrimeResolver, queue PrefetchQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	actions := NewActions(resolver, queue, VersionInfo{Version: "test"}, 4000)
	return newEngine(&cnf.Conf{CORSAllowedOrigins: []string{"https://example.com"}}, actions)
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorDetail {
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestOk(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doRequest(engine, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp["timestamp"], int64(0))
}

func TestPrimesReturnsJSONString(t *testing.T) {
	resolver := &fakeResolver{resp: service.Response{Prime: "101"}}
	engine := newTestEngine(resolver, nil)
	w := doRequest(engine, http.MethodPost, "/primes", `{"number": "100", "postId": "p1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var ans string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ans))
	assert.Equal(t, "101", ans)
	assert.Equal(t, service.Request{Numeral: "100", PostID: "p1"}, resolver.lastReq)
}

func TestPrimesArgumentValidation(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	bodies := []string{
		`{"postId": "p1"}`,
		`{"number": "100"}`,
		`{"number": 100, "postId": "p1"}`,
		`{"number": "100", "postId": ""}`,
		`{"number": "100", "postId": 12}`,
		`not a json`,
	}
	for _, body := range bodies {
		w := doRequest(engine, http.MethodPost, "/primes", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, codeInvalidArgument, decodeError(t, w).Code, body)
	}
}

func TestPrimesErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{
			fmt.Errorf("%w: %w", service.ErrInvalidInput, search.ErrTooManyDigits),
			http.StatusBadRequest, codeInvalidArgument,
		},
		{
			fmt.Errorf("%w: %w", service.ErrInvalidInput, search.ErrInvalidNumeral),
			http.StatusBadRequest, codeInvalidArgument,
		},
		{service.ErrCandidateNotFound, http.StatusBadRequest, codeCandidateNotFound},
		{service.ErrSearchCancelled, http.StatusServiceUnavailable, codeSearchTimeout},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, codeInternalError},
	}
	for _, c := range cases {
		engine := newTestEngine(&fakeResolver{err: c.err}, nil)
		w := doRequest(engine, http.MethodPost, "/primes", `{"number": "100", "postId": "p1"}`)
		assert.Equal(t, c.status, w.Code, c.err.Error())
		assert.Equal(t, c.code, decodeError(t, w).Code, c.err.Error())
	}
}

func TestTooManyDigitsMessage(t *testing.T) {
	engine := newTestEngine(
		&fakeResolver{err: fmt.Errorf("%w: %w", service.ErrInvalidInput, search.ErrTooManyDigits)}, nil)
	w := doRequest(engine, http.MethodPost, "/primes", `{"number": "100", "postId": "p1"}`)
	assert.Contains(t, decodeError(t, w).Message, "at most 4000 digits")
}

func TestRouteNotFound(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doRequest(engine, http.MethodGet, "/foo", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeRouteNotFound, decodeError(t, w).Code)

	w = doRequest(engine, http.MethodGet, "/primes", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeRouteNotFound, decodeError(t, w).Code)
}

func TestPrefetchRouteOnlyWithQueue(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doRequest(engine, http.MethodPost, "/prefetch", `{"numbers": ["10"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	queue := &fakeQueue{}
	engine = newTestEngine(&fakeResolver{}, queue)
	w = doRequest(engine, http.MethodPost, "/prefetch", `{"numbers": ["10", "20"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"10", "20"}, queue.items)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["queued"])
}

func TestPrefetchErrors(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, &fakeQueue{err: prefetch.ErrQueueFull})
	w := doRequest(engine, http.MethodPost, "/prefetch", `{"numbers": ["10"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, codePrefetchQueueFull, decodeError(t, w).Code)

	engine = newTestEngine(&fakeResolver{}, &fakeQueue{err: fmt.Errorf("%w: bad", service.ErrInvalidInput)})
	w = doRequest(engine, http.MethodPost, "/prefetch", `{"numbers": ["x"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeInvalidArgument, decodeError(t, w).Code)
}

func TestOverview(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, &fakeQueue{})
	w := doRequest(engine, http.MethodGet, "/overview", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "service")
	assert.Contains(t, resp, "prefetch")
	assert.Equal(t, "test", resp["version"].(map[string]any)["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doRequest(engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSHeaders(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/primes", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "https://other.org")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func doGzipRequest(engine *gin.Engine, path, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGzipResponses(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doGzipRequest(engine, "/ok", "deflate, gzip")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")
	assert.Empty(t, w.Header().Get("Content-Length"))
	rd, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(rd)
	require.NoError(t, err)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Greater(t, resp["timestamp"], int64(0))

	w = doGzipRequest(engine, "/ok", "")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doGzipRequest(engine, "/ok", "gzip;q=0")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestGzipErrorResponse(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doGzipRequest(engine, "/unknown", "gzip")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	rd, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestMetricsNotCompressedTwice(t *testing.T) {
	engine := newTestEngine(&fakeResolver{}, nil)
	w := doGzipRequest(engine, "/metrics", "gzip")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"gzip"}, w.Header().Values("Content-Encoding"))
	rd, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestAcceptsGzip(t *testing.T) {
	for header, expected := range map[string]bool{
		"":                 false,
		"gzip":             true,
		"br, gzip;q=0.8":   true,
		"gzip; q=0":        false,
		"deflate":          false,
		"identity, x-gzip": false,
		"GZIP":             true,
		"br;q=1.0, gzip ":  true,
	} {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("Accept-Encoding", header)
		assert.Equal(t, expected, acceptsGzip(req), "header %q", header)
	}
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "12345", abbreviate("12345"))
	long := strings.Repeat("1", 100)
	assert.Equal(t, "111111111111111...111111111111111 (100 digits)", abbreviate(long))
}
