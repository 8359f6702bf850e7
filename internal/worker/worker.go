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

// Package worker consumes email jobs from the queue and delivers them.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/covidreport/backend/internal/models"
	"github.com/covidreport/backend/internal/queue"
)

// Sender delivers one analysis email.
type Sender interface {
	Send(task models.EmailTask) error
}

// Worker drains the mail queue, sends each email, and records the job result
// so the API's job-status endpoint can report completion.
type Worker struct {
	queue       *queue.RedisQueue
	sender      Sender
	popTimeout  time.Duration
	retryOnFail time.Duration
}

// New creates a worker consuming from q and delivering via sender.
func New(q *queue.RedisQueue, sender Sender) *Worker {
	return &Worker{
		queue:       q,
		sender:      sender,
		popTimeout:  5 * time.Second,
		retryOnFail: 2 * time.Second,
	}
}

// Run blocks processing jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("mail worker started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("mail worker stopping")
			return ctx.Err()
		default:
		}

		task, err := w.queue.Dequeue(ctx, w.popTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			slog.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryOnFail):
			}
			continue
		}
		if task == nil {
			// Timed out with nothing queued.
			continue
		}

		w.process(ctx, task)
	}
}

// process sends one email and records the outcome as the job result. A failed
// send still finishes the job; the failure message becomes the result.
func (w *Worker) process(ctx context.Context, task *models.EmailTask) {
	slog.Info("processing email job",
		"job_id", task.ID,
		"recipient", task.Recipient,
		"country", task.Country,
	)

	result := "Mail was sent successfully."
	if err := w.sender.Send(*task); err != nil {
		slog.Error("mail delivery failed",
			"job_id", task.ID,
			"recipient", task.Recipient,
			"error", err,
		)
		result = "Mail delivery failed: " + err.Error()
	}

	if err := w.queue.Complete(ctx, task.ID, result); err != nil {
		slog.Error("failed to record job result",
			"job_id", task.ID,
			"error", err,
		)
		return
	}

	slog.Info("email job finished", "job_id", task.ID, "result", result)
}
