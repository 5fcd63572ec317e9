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

// Package meter stores per-request search statistics into
// a JSONL file for later offline analysis.
package meter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nearprime/reporting"

	"github.com/czcorpus/cnc-gokit/fs"
	"github.com/rs/zerolog/log"
)

const (
	dfltMaxFileSize = 50 * 1024 * 1024
)

type statsRecord struct {
	Time      time.Time `json:"time"`
	RequestID string    `json:"requestId"`
	Digits    int       `json:"digits"`
	Examined  int       `json:"examined"`
	TimeProc  float64   `json:"timeProc"`
	Cached    bool      `json:"cached"`
	Found     bool      `json:"found"`
}

// Meter is a service which reads incoming search statistics
// and appends them to a file (one JSON record per line).
type Meter struct {
	incoming      <-chan reporting.SearchStats
	statsFile     *os.File
	statsFilePath string

	// MaxFileSize is the maximum size in bytes before rotating the file
	MaxFileSize int64
	done        chan struct{}
	now         func() time.Time
}

func (meter *Meter) writeStats(rec *statsRecord) error {
	if meter.statsFilePath == "" {
		return nil
	}
	if meter.statsFile != nil {
		fileInfo, err := meter.statsFile.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat stats file: %w", err)
		}
		if fileInfo.Size() >= meter.MaxFileSize {
			if err := meter.rotateStatsFile(); err != nil {
				return fmt.Errorf("failed to prepare stats file: %w", err)
			}
		}
	}
	if meter.statsFile == nil {
		file, err := os.OpenFile(meter.statsFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open stats file: %w", err)
		}
		meter.statsFile = file
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal stats record: %w", err)
	}
	data = append(data, '\n')
	if _, err := meter.statsFile.Write(data); err != nil {
		return fmt.Errorf("failed to write stats record: %w", err)
	}
	return nil
}

// rotatedPath finds a free name with a date suffix
// (and a sequence number for repeated rotations within a day).
func (meter *Meter) rotatedPath() (string, error) {
	base := fmt.Sprintf("%s-%s", meter.statsFilePath, meter.now().Format("2006-01-02"))
	ans := base
	for i := 1; ; i++ {
		exists, err := fs.IsFile(ans)
		if err != nil {
			return "", err
		}
		if !exists {
			return ans, nil
		}
		ans = fmt.Sprintf("%s.%d", base, i)
	}
}

func (meter *Meter) rotateStatsFile() error {
	if meter.statsFile != nil {
		if err := meter.statsFile.Close(); err != nil {
			return fmt.Errorf("failed to close stats file during rotation: %w", err)
		}
		meter.statsFile = nil
	}
	rotatedPath, err := meter.rotatedPath()
	if err != nil {
		return fmt.Errorf("failed to rotate stats file: %w", err)
	}
	if err := os.Rename(meter.statsFilePath, rotatedPath); err != nil {
		return fmt.Errorf("failed to rotate stats file: %w", err)
	}
	log.Info().
		Str("from", meter.statsFilePath).
		Str("to", rotatedPath).
		Msg("rotated stats file")
	return nil
}

func (meter *Meter) listenForData(ctx context.Context) {
	defer close(meter.done)
	defer meter.cleanup()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("meter context cancelled, shutting down")
			return
		case item, ok := <-meter.incoming:
			if !ok {
				log.Info().Msg("meter incoming channel closed, shutting down")
				return
			}
			sr := &statsRecord{
				Time:      meter.now(),
				RequestID: item.RequestID,
				Digits:    item.Digits,
				Examined:  item.Examined,
				TimeProc:  item.Duration.Seconds(),
				Cached:    item.Cached,
				Found:     item.Found,
			}
			if err := meter.writeStats(sr); err != nil {
				log.Error().Err(err).Str("requestId", item.RequestID).Msg("failed to write stats data")
			}
		}
	}
}

func (meter *Meter) cleanup() {
	if meter.statsFile != nil {
		if err := meter.statsFile.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close stats file during cleanup")

		} else {
			log.Info().Str("path", meter.statsFilePath).Msg("closed stats file")
		}
		meter.statsFile = nil
	}
}

// Start implements the service interface
func (meter *Meter) Start(ctx context.Context) {
	if meter.statsFilePath == "" {
		log.Info().Msg("starting meter service in dummy mode (no stats will be written)")

	} else {
		log.Info().Str("statsPath", meter.statsFilePath).Msg("starting meter service")
	}
	go meter.listenForData(ctx)
}

// Stop implements the service interface
func (meter *Meter) Stop(ctx context.Context) error {
	log.Info().Msg("stopping meter service")
	select {
	case <-meter.done:
		log.Info().Msg("meter service stopped gracefully")
		return nil
	case <-ctx.Done():
		log.Warn().Msg("meter service stop timed out")
		return ctx.Err()
	}
}

// NewMeter creates a new meter. An empty statsPath means dummy mode
// where incoming records are consumed but not stored.
func NewMeter(statsPath string, incData <-chan reporting.SearchStats) (*Meter, error) {
	if statsPath != "" {
		dir := filepath.Dir(statsPath)
		isDir, err := fs.IsDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
		}
		if !isDir {
			return nil, fmt.Errorf("directory does not exist: %s", dir)
		}
		testFile, err := os.OpenFile(statsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("cannot create or write to stats file %s: %w", statsPath, err)
		}
		testFile.Close()
	}
	return &Meter{
		incoming:      incData,
		statsFilePath: statsPath,
		MaxFileSize:   dfltMaxFileSize,
		done:          make(chan struct{}),
		now:           time.Now,
	}, nil
}
