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
	"sync"

	"github.com/rs/zerolog/log"
)

// DummySink only logs (and remembers) publications.
type DummySink struct {
	mu        sync.Mutex
	published []Publication
}

func (sink *DummySink) Publish(ctx context.Context, pub Publication) error {
	sink.mu.Lock()
	sink.published = append(sink.published, pub)
	sink.mu.Unlock()
	log.Info().
		Str("postId", pub.PostID).
		Int("primeDigits", len(pub.PrimeNumberString)).
		Msg("writing dummy publication")
	return nil
}

// Published returns a copy of all the publications so far.
func (sink *DummySink) Published() []Publication {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	ans := make([]Publication, len(sink.published))
	copy(ans, sink.published)
	return ans
}
