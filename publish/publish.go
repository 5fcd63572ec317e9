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

// Package publish delivers found primes to the document store
// the client reads posts from.
package publish

import (
	"context"
	"errors"
)

var ErrPostNotFound = errors.New("post not found")

// Publication is a prime attached to a post.
type Publication struct {
	PostID            string `json:"postId"`
	PrimeNumberString string `json:"primeNumberString"`
}

// Sink is a destination for publications. Publishing the same
// publication repeatedly leaves the post in the same state.
type Sink interface {
	Publish(ctx context.Context, pub Publication) error
}
