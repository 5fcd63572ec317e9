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

package publish

import (
	"context"
	"fmt"
)

// NewSink creates a sink according to the configuration.
// The redis argument is required only for the redis sink.
func NewSink(ctx context.Context, conf *Conf, redis HashPublisher) (Sink, error) {
	switch conf.Sink {
	case SinkPostgres:
		sink, err := NewPgSink(ctx, conf.Postgres, conf.Collection)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case SinkRedis:
		if redis == nil {
			return nil, fmt.Errorf("publish sink `redis` requires the `redis` section")
		}
		return NewRedisSink(redis, conf.Collection, conf.Channel), nil
	case SinkDummy:
		return &DummySink{}, nil
	default:
		return nil, fmt.Errorf("unknown publish sink `%s`", conf.Sink)
	}
}
