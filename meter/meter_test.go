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

package meter

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nearprime/reporting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []statsRecord {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	ans := make([]statsRecord, 0, 10)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec statsRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		ans = append(ans, rec)
	}
	require.NoError(t, scanner.Err())
	return ans
}

func runMeter(t *testing.T, m *Meter, ch chan reporting.SearchStats, items ...reporting.SearchStats) {
	m.Start(context.Background())
	for _, item := range items {
		ch <- item
	}
	close(ch)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
}

func TestMeterWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.jsonl")
	ch := make(chan reporting.SearchStats)
	m, err := NewMeter(path, ch)
	require.NoError(t, err)
	runMeter(
		t, m, ch,
		reporting.SearchStats{RequestID: "a", Digits: 3, Examined: 1, Duration: 2 * time.Second, Found: true},
		reporting.SearchStats{RequestID: "b", Digits: 3, Cached: true, Found: true},
	)
	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].RequestID)
	assert.Equal(t, 2.0, recs[0].TimeProc)
	assert.True(t, recs[1].Cached)
}

func TestMeterRotatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.jsonl")
	ch := make(chan reporting.SearchStats)
	m, err := NewMeter(path, ch)
	require.NoError(t, err)
	m.MaxFileSize = 1
	m.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	runMeter(
		t, m, ch,
		reporting.SearchStats{RequestID: "a"},
		reporting.SearchStats{RequestID: "b"},
		reporting.SearchStats{RequestID: "c"},
	)
	recs := readRecords(t, path)
	require.Len(t, recs, 1)
	assert.Equal(t, "c", recs[0].RequestID)
	rotated := readRecords(t, path+"-2024-05-01")
	require.Len(t, rotated, 1)
	assert.Equal(t, "a", rotated[0].RequestID)
	rotated = readRecords(t, path+"-2024-05-01.1")
	require.Len(t, rotated, 1)
	assert.Equal(t, "b", rotated[0].RequestID)
}

func TestMeterDummyMode(t *testing.T) {
	ch := make(chan reporting.SearchStats)
	m, err := NewMeter("", ch)
	require.NoError(t, err)
	runMeter(t, m, ch, reporting.SearchStats{RequestID: "a"})
}

func TestMeterMissingDirectory(t *testing.T) {
	_, err := NewMeter(filepath.Join(t.TempDir(), "nonexistent", "stats.jsonl"), nil)
	assert.Error(t, err)
}
