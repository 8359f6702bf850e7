// Copyright (c) 2026 John Earle
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

// Package covid implements the statistics pipeline: date-range resolution,
// resilient fetching from the upstream API, timeline filtering, chart
// rendering, and handoff of the mail job to the background queue.
package covid

import (
	"errors"
	"fmt"
	"time"
)

// DateFormat is the wire format for all dates in this service.
const DateFormat = "2006-01-02"

// defaultLookback is the window used when the caller supplies no dates.
const defaultLookback = 15 * 24 * time.Hour

// ErrInvalidDateFormat reports a date query parameter that is not YYYY-MM-DD.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

// DateRange is a closed calendar interval. Start never follows End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// StartString returns the range start formatted as YYYY-MM-DD.
func (r DateRange) StartString() string { return r.Start.Format(DateFormat) }

// EndString returns the range end formatted as YYYY-MM-DD.
func (r DateRange) EndString() string { return r.End.Format(DateFormat) }

// Contains reports whether t falls inside the range, inclusive on both ends.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ResolveDateRange turns optional start/end query values into a concrete range.
//
// Priority rules:
//  1. Neither supplied: end = now, start = now − 15 days.
//  2. Only start supplied: parse it, end = now.
//  3. End supplied (with or without start): parse it and collapse the range
//     to that single day. Matches the upstream service's behaviour, where an
//     explicit end date always wins and discards the start.
func ResolveDateRange(startStr, endStr string, now time.Time) (DateRange, error) {
	if startStr == "" && endStr == "" {
		return DateRange{Start: now.Add(-defaultLookback), End: now}, nil
	}

	if startStr != "" && endStr == "" {
		start, err := parseDate(startStr)
		if err != nil {
			return DateRange{}, err
		}
		return DateRange{Start: start, End: now}, nil
	}

	end, err := parseDate(endStr)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: end, End: end}, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return t, nil
}
