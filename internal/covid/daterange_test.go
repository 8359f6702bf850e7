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

package covid

import (
	"errors"
	"testing"
	"time"
)

// TestResolveDateRange_Defaults verifies the 15-day window when neither
// bound is supplied.
func TestResolveDateRange_Defaults(t *testing.T) {
	now := time.Date(2020, 12, 20, 10, 30, 0, 0, time.UTC)

	r, err := ResolveDateRange("", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.End.Equal(now) {
		t.Errorf("end = %v, want %v", r.End, now)
	}
	if want := now.AddDate(0, 0, -15); !r.Start.Equal(want) {
		t.Errorf("start = %v, want %v", r.Start, want)
	}
}

// TestResolveDateRange_StartOnly verifies that a lone start date runs up to now.
func TestResolveDateRange_StartOnly(t *testing.T) {
	now := time.Date(2020, 12, 20, 10, 30, 0, 0, time.UTC)

	r, err := ResolveDateRange("2020-12-05", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.StartString() != "2020-12-05" {
		t.Errorf("start = %s, want 2020-12-05", r.StartString())
	}
	if !r.End.Equal(now) {
		t.Errorf("end = %v, want %v", r.End, now)
	}
}

// TestResolveDateRange_EndCollapses verifies that supplying an end date
// collapses the range to that single day, with or without a start date.
func TestResolveDateRange_EndCollapses(t *testing.T) {
	now := time.Date(2020, 12, 20, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "end only", start: "", end: "2020-12-15"},
		{name: "both supplied", start: "2020-12-05", end: "2020-12-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ResolveDateRange(tt.start, tt.end, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.StartString() != "2020-12-15" {
				t.Errorf("start = %s, want 2020-12-15", r.StartString())
			}
			if r.EndString() != "2020-12-15" {
				t.Errorf("end = %s, want 2020-12-15", r.EndString())
			}
		})
	}
}

// TestResolveDateRange_Invariant verifies start ≤ end across every branch of
// the priority rules.
func TestResolveDateRange_Invariant(t *testing.T) {
	now := time.Date(2020, 12, 20, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "neither"},
		{name: "start only", start: "2020-12-01"},
		{name: "end only", end: "2020-12-15"},
		{name: "both", start: "2020-12-01", end: "2020-12-15"},
		{name: "both reversed", start: "2020-12-18", end: "2020-12-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ResolveDateRange(tt.start, tt.end, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Start.After(r.End) {
				t.Errorf("start %v after end %v", r.Start, r.End)
			}
		})
	}
}

// TestResolveDateRange_Malformed verifies bad input surfaces ErrInvalidDateFormat.
func TestResolveDateRange_Malformed(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "bad start", start: "12/05/2020"},
		{name: "bad end", end: "yesterday"},
		{name: "bad end with good start", start: "2020-12-05", end: "2020-13-99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveDateRange(tt.start, tt.end, now)
			if !errors.Is(err, ErrInvalidDateFormat) {
				t.Errorf("error = %v, want ErrInvalidDateFormat", err)
			}
		})
	}
}

// TestDateRange_Contains verifies inclusive bounds.
func TestDateRange_Contains(t *testing.T) {
	r := DateRange{
		Start: time.Date(2020, 12, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 12, 15, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		date string
		want bool
	}{
		{"2020-12-09", false},
		{"2020-12-10", true},
		{"2020-12-12", true},
		{"2020-12-15", true},
		{"2020-12-16", false},
	}

	for _, tt := range tests {
		d, _ := time.Parse(DateFormat, tt.date)
		if got := r.Contains(d); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}
