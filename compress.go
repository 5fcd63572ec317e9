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
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// gzipResponseWriter passes everything a handler writes
// through a gzip stream.
type gzipResponseWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (gw *gzipResponseWriter) WriteHeader(code int) {
	gw.Header().Del("Content-Length")
	gw.ResponseWriter.WriteHeader(code)
}

func (gw *gzipResponseWriter) Write(data []byte) (int, error) {
	gw.Header().Del("Content-Length")
	return gw.writer.Write(data)
}

func (gw *gzipResponseWriter) WriteString(s string) (int, error) {
	gw.Header().Del("Content-Length")
	return gw.writer.Write([]byte(s))
}

// acceptsGzip tests the Accept-Encoding header for gzip
// (an explicit q=0 counts as a refusal).
func acceptsGzip(req *http.Request) bool {
	for _, item := range strings.Split(req.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(item), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		params = strings.ReplaceAll(params, " ", "")
		return params != "q=0" && params != "q=0.0"
	}
	return false
}

// gzipMiddleware compresses responses for clients accepting gzip.
// The /metrics endpoint compresses on its own.
func gzipMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodOptions ||
			ctx.Request.URL.Path == "/metrics" ||
			!acceptsGzip(ctx.Request) {
			ctx.Next()
			return
		}
		gz := gzip.NewWriter(ctx.Writer)
		gw := &gzipResponseWriter{ResponseWriter: ctx.Writer, writer: gz}
		ctx.Header("Content-Encoding", "gzip")
		ctx.Writer.Header().Add("Vary", "Accept-Encoding")
		ctx.Writer = gw
		defer func() {
			if gw.Size() < 0 {
				// nothing written, an empty body must stay empty
				ctx.Header("Content-Encoding", "")
				gz.Reset(io.Discard)
			}
			gz.Close()
		}()
		ctx.Next()
	}
}
