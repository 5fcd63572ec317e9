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
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// MaxSourceDigits is the default limit for the length of a source numeral
	MaxSourceDigits = 4000
)

var (
	ErrInvalidNumeral = errors.New("invalid numeral")
	ErrTooManyDigits  = errors.New("too many digits")
)

// Source is a non-negative integer we search a nearby prime for.
// Digits is the decimal length of Value.
type Source struct {
	Value  *big.Int
	Digits int
}

// NewSource creates a Source from an existing value.
// The value is copied. The sign does not count as a digit.
func NewSource(v *big.Int) Source {
	return Source{
		Value:  new(big.Int).Set(v),
		Digits: len(new(big.Int).Abs(v).String()),
	}
}

// ParseNumeral validates a decimal numeral and returns its canonical form
// (no surrounding whitespace, no leading zeros) along with the parsed value.
// Only plain ASCII digits are accepted (no sign, no separators).
// The canonical form is the key used by result caches.
func ParseNumeral(raw string, maxDigits int) (Source, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Source{}, "", fmt.Errorf("%w: empty value", ErrInvalidNumeral)
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] < '0' || trimmed[i] > '9' {
			return Source{}, "", fmt.Errorf("%w: unexpected character at position %d", ErrInvalidNumeral, i)
		}
	}
	canonical := strings.TrimLeft(trimmed, "0")
	if canonical == "" {
		canonical = "0"
	}
	if maxDigits > 0 && len(canonical) > maxDigits {
		return Source{}, "", fmt.Errorf("%w: %d digits, at most %d allowed", ErrTooManyDigits, len(canonical), maxDigits)
	}
	v, ok := new(big.Int).SetString(canonical, 10)
	if !ok {
		return Source{}, "", fmt.Errorf("%w: failed to parse", ErrInvalidNumeral)
	}
	return Source{Value: v, Digits: len(canonical)}, canonical, nil
}
