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
	"encoding/json"
	"fmt"
	"time"

	"github.com/covidreport/backend/internal/models"
)

// Series holds the filtered timeline in the parallel-sequence form the chart
// renderer consumes.
type Series struct {
	Dates     []string
	Confirmed []int64
	Recovered []int64
	Deaths    []int64
}

// Len returns the number of reporting days in the series.
func (s Series) Len() int { return len(s.Dates) }

// Transformed is the outcome of filtering an upstream payload.
type Transformed struct {
	// Payload is the upstream response with the timeline replaced in place
	// by the filtered records. All other fields pass through verbatim.
	Payload map[string]json.RawMessage

	// Timeline is the filtered subsequence, source order preserved.
	Timeline []models.TimelinePoint

	Series Series
}

// TransformPayload parses an upstream `{data: {timeline: [...]}}` payload and
// keeps only the timeline records whose date falls inside r, inclusive.
// A payload with no matching records is valid and yields an empty timeline.
func TransformPayload(raw []byte, r DateRange) (*Transformed, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode statistics payload: %w", err)
	}

	dataRaw, ok := top["data"]
	if !ok {
		return nil, fmt.Errorf("statistics payload has no data field")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return nil, fmt.Errorf("decode data field: %w", err)
	}

	var timeline []models.TimelinePoint
	if rawTimeline, ok := data["timeline"]; ok {
		if err := json.Unmarshal(rawTimeline, &timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
	}

	out := &Transformed{Timeline: []models.TimelinePoint{}}
	for _, point := range timeline {
		date, err := parsePointDate(point.Date)
		if err != nil {
			return nil, fmt.Errorf("timeline record: %w", err)
		}
		if !r.Contains(date) {
			continue
		}
		out.Timeline = append(out.Timeline, point)
		out.Series.Dates = append(out.Series.Dates, date.Format(DateFormat))
		out.Series.Confirmed = append(out.Series.Confirmed, point.Confirmed)
		out.Series.Recovered = append(out.Series.Recovered, point.Recovered)
		out.Series.Deaths = append(out.Series.Deaths, point.Deaths)
	}

	// Rebuild the payload with the filtered timeline swapped in.
	filtered, err := json.Marshal(out.Timeline)
	if err != nil {
		return nil, fmt.Errorf("marshal filtered timeline: %w", err)
	}
	data["timeline"] = filtered

	rebuiltData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data field: %w", err)
	}
	top["data"] = rebuiltData
	out.Payload = top

	return out, nil
}

// parsePointDate accepts the upstream date format, tolerating a trailing
// timestamp (some mirrors report RFC 3339 dates).
func parsePointDate(s string) (time.Time, error) {
	if len(s) >= len(DateFormat) {
		s = s[:len(DateFormat)]
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return t, nil
}
