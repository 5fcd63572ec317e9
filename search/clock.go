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

package search

import (
	"context"
	"time"
)

// stepSafetyFactor covers fluctuations of the step duration
const stepSafetyFactor = 1.25

// stepClock watches the duration of search steps (a single candidate
// or a batch of them) which found no prime and tells whether one more
// step still fits before the context deadline. A step which finds
// a prime may cost confirmationSteps times more (all the Miller-Rabin
// rounds) so this is reserved too. Without a deadline any step fits.
type stepClock struct {
	deadline          time.Time
	hasDeadline       bool
	confirmationSteps int
	total             time.Duration
	steps             int
	now               func() time.Time
}

func (sc *stepClock) record(d time.Duration) {
	sc.total += d
	sc.steps++
}

func (sc *stepClock) nextStepFits() bool {
	if !sc.hasDeadline || sc.steps == 0 {
		return true
	}
	mean := float64(sc.total) / float64(sc.steps)
	need := time.Duration(mean * float64(1+sc.confirmationSteps) * stepSafetyFactor)
	return sc.now().Add(need).Before(sc.deadline)
}

func newStepClock(ctx context.Context, confirmationSteps int) *stepClock {
	deadline, ok := ctx.Deadline()
	return &stepClock{
		deadline:          deadline,
		hasDeadline:       ok,
		confirmationSteps: confirmationSteps,
		now:               time.Now,
	}
}
