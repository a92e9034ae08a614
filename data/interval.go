// Copyright 2023-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Interval is a half-open time range [Begin, End). Begin is included in the
// interval, End is not.
type Interval struct {
	Begin time.Time
	End   time.Time
}

// NewInterval constructs the half-open interval [begin, end)
func NewInterval(begin, end time.Time) *Interval {
	return &Interval{Begin: begin, End: end}
}

// Valid checks if the given interval is a valid range and returns an error if not
func (interval *Interval) Valid() error {
	if !interval.Begin.Before(interval.End) {
		return ErrBeginAfterEnd
	}

	return nil
}

// Contains returns true if interval completely contains other
func (interval *Interval) Contains(other *Interval) bool {
	return !other.Begin.Before(interval.Begin) && !other.End.After(interval.End)
}

// ContainsDate returns true if the date falls within the interval
func (interval *Interval) ContainsDate(date time.Time) bool {
	return !date.Before(interval.Begin) && date.Before(interval.End)
}

// Overlaps returns true if interval and other share at least one instant.
// Half-open ranges that merely touch do not overlap.
func (interval *Interval) Overlaps(other *Interval) bool {
	return other.Begin.Before(interval.End) && other.End.After(interval.Begin)
}

// Adjacent returns true if other touches the begining or ending of interval
// without overlapping it
func (interval *Interval) Adjacent(other *Interval) bool {
	return other.End.Equal(interval.Begin) || interval.End.Equal(other.Begin)
}

// Contiguous returns true if other overlaps or touches interval; contiguous
// intervals can be merged into a single covering interval
func (interval *Interval) Contiguous(other *Interval) bool {
	return interval.Overlaps(other) || interval.Adjacent(other)
}

// Intersect returns the portion of interval covered by other, or nil when
// the two do not overlap
func (interval *Interval) Intersect(other *Interval) *Interval {
	if !interval.Overlaps(other) {
		return nil
	}

	res := &Interval{Begin: interval.Begin, End: interval.End}
	if other.Begin.After(res.Begin) {
		res.Begin = other.Begin
	}
	if other.End.Before(res.End) {
		res.End = other.End
	}

	return res
}

// Missing computes the ordered, minimal set of sub-ranges within interval
// that are not covered by any interval in covered. Covered intervals may
// overlap each other and may extend beyond interval.
func (interval *Interval) Missing(covered []*Interval) []*Interval {
	sorted := make([]*Interval, 0, len(covered))
	for _, item := range covered {
		if interval.Overlaps(item) {
			sorted = append(sorted, item)
		}
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Begin.Before(sorted[j].Begin)
	})

	missing := []*Interval{}
	cursor := interval.Begin

	for _, item := range sorted {
		if item.Begin.After(cursor) {
			missing = append(missing, &Interval{Begin: cursor, End: item.Begin})
		}
		if item.End.After(cursor) {
			cursor = item.End
		}
		if !cursor.Before(interval.End) {
			return missing
		}
	}

	if cursor.Before(interval.End) {
		missing = append(missing, &Interval{Begin: cursor, End: interval.End})
	}

	return missing
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (interval *Interval) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Begin", interval.Begin).Time("End", interval.End)
}
