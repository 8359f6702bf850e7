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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/covidreport/backend/internal/models"
)

// Renderer produces the chart artifact for a filtered series.
type Renderer interface {
	Render(country, start, end string, dates []string, confirmed, recovered, deaths []int64) (string, error)
}

// Dispatcher hands the email job to the background queue.
type Dispatcher interface {
	Enqueue(ctx context.Context, task models.EmailTask) (string, error)
}

// RenderError wraps a chart rendering failure. Fatal to the request.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render chart: %v", e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// Result is the outcome of a pipeline run.
type Result struct {
	// Payload is the upstream response with the timeline filtered in place.
	Payload map[string]json.RawMessage

	// JobID identifies the dispatched email job. Empty when the queue was
	// unavailable; email delivery is best-effort.
	JobID string
}

// Pipeline wires the fetch, transform, render, and dispatch stages.
type Pipeline struct {
	fetcher    *Fetcher
	renderer   Renderer
	dispatcher Dispatcher
	baseURL    string
	sender     string
	now        func() time.Time
}

// PipelineConfig holds dependencies for the pipeline.
type PipelineConfig struct {
	Fetcher    *Fetcher
	Renderer   Renderer
	Dispatcher Dispatcher
	BaseURL    string
	Sender     string // From address for the dispatched email
	Now        func() time.Time
}

// NewPipeline creates the statistics pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		fetcher:    cfg.Fetcher,
		renderer:   cfg.Renderer,
		dispatcher: cfg.Dispatcher,
		baseURL:    cfg.BaseURL,
		sender:     cfg.Sender,
		now:        now,
	}
}

// Run executes the pipeline for one request: resolve the date range, fetch
// the country statistics, filter the timeline, render the chart, and enqueue
// the email job addressed to recipient.
//
// A queue failure does not fail the run: the caller still gets the filtered
// payload, with an empty JobID. Everything earlier in the chain is fatal.
func (p *Pipeline) Run(ctx context.Context, recipient, country, startStr, endStr string) (*Result, error) {
	dateRange, err := ResolveDateRange(startStr, endStr, p.now())
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/countries/%s", p.baseURL, country)
	raw, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	transformed, err := TransformPayload(raw, dateRange)
	if err != nil {
		return nil, err
	}

	start := dateRange.StartString()
	end := dateRange.EndString()

	slog.Info("statistics fetched and filtered",
		"country", country,
		"start", start,
		"end", end,
		"points", transformed.Series.Len(),
	)

	chartFile, err := p.renderer.Render(country, start, end,
		transformed.Series.Dates,
		transformed.Series.Confirmed,
		transformed.Series.Recovered,
		transformed.Series.Deaths,
	)
	if err != nil {
		return nil, &RenderError{Err: err}
	}

	result := &Result{Payload: transformed.Payload}

	jobID, err := p.dispatcher.Enqueue(ctx, models.EmailTask{
		Sender:    p.sender,
		Recipient: recipient,
		StartDate: start,
		EndDate:   end,
		Country:   country,
		ChartFile: chartFile,
	})
	if err != nil {
		// Best-effort delivery: the caller still gets the statistics.
		slog.Error("email job dispatch failed",
			"recipient", recipient,
			"country", country,
			"error", err,
		)
		return result, nil
	}

	slog.Info("email job dispatched", "job_id", jobID)
	result.JobID = jobID

	return result, nil
}
