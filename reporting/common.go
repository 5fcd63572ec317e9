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

package reporting

import (
	"context"
	"time"
)

// SearchStats describes a single resolved request.
type SearchStats struct {
	RequestID string        `json:"requestId"`
	Digits    int           `json:"digits"`
	Examined  int           `json:"examined"`
	Duration  time.Duration `json:"duration"`
	Cached    bool          `json:"cached"`
	Found     bool          `json:"found"`
}

// ------------

type PrefetchStats struct {
	NumFetched  int `json:"numFetched"`
	NumCached   int `json:"numCached"`
	NumInserted int `json:"numInserted"`
	NumNotFound int `json:"numNotFound"`
	NumErrors   int `json:"numErrors"`
}

func (ps *PrefetchStats) UpdateBy(other PrefetchStats) {
	ps.NumFetched += other.NumFetched
	ps.NumCached += other.NumCached
	ps.NumInserted += other.NumInserted
	ps.NumNotFound += other.NumNotFound
	ps.NumErrors += other.NumErrors
}

func (ps *PrefetchStats) ShowsActivity() bool {
	return ps.NumFetched+ps.NumErrors > 0
}

// ------------

type IReporting interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	WriteSearchStatus(item SearchStats)
	WritePrefetchStatus(item PrefetchStats)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
