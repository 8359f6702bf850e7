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

// Package queue dispatches email jobs to Redis and tracks their state.
// This is the bridge between the API server and the mail worker process.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/covidreport/backend/internal/models"
)

// statusKeyPrefix namespaces job state keys in Redis.
const statusKeyPrefix = "covidreport:job:"

// pendingTTL bounds how long an unclaimed pending marker may linger.
const pendingTTL = time.Hour

var (
	// ErrQueueUnavailable reports that Redis could not accept the job.
	ErrQueueUnavailable = errors.New("task queue unavailable")

	// ErrJobNotFound reports an unknown or expired job id.
	ErrJobNotFound = errors.New("job not found")
)

// RedisQueue submits email tasks to a Redis list and records per-job state
// under a TTL so finished results stay queryable for the polling window.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
	resultTTL time.Duration
}

// NewRedisQueue creates a queue targeting queueName. Finished job results are
// retained for resultTTL before eviction.
func NewRedisQueue(rdb *redis.Client, queueName string, resultTTL time.Duration) *RedisQueue {
	return &RedisQueue{
		rdb:       rdb,
		queueName: queueName,
		resultTTL: resultTTL,
	}
}

// Enqueue assigns the task an id, marks it pending, and pushes it onto the
// mail queue. Returns the job id.
func (q *RedisQueue) Enqueue(ctx context.Context, task models.EmailTask) (string, error) {
	task.ID = uuid.New().String()

	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal email task: %w", err)
	}

	pending, err := json.Marshal(models.JobState{Finished: false})
	if err != nil {
		return "", fmt.Errorf("marshal pending state: %w", err)
	}

	if err := q.rdb.Set(ctx, statusKeyPrefix+task.ID, pending, pendingTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	// Workers consume with BRPOP, so LPUSH gives FIFO order.
	if err := q.rdb.LPush(ctx, q.queueName, payload).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	slog.Info("email job enqueued",
		"job_id", task.ID,
		"recipient", task.Recipient,
		"country", task.Country,
		"queue", q.queueName,
	)

	return task.ID, nil
}

// Status looks up the state of a job. One-shot: callers decide whether to
// poll again. Unknown or expired ids fail with ErrJobNotFound.
func (q *RedisQueue) Status(ctx context.Context, jobID string) (models.JobState, error) {
	raw, err := q.rdb.Get(ctx, statusKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.JobState{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return models.JobState{}, fmt.Errorf("job status lookup: %w", err)
	}

	var state models.JobState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.JobState{}, fmt.Errorf("decode job state: %w", err)
	}

	return state, nil
}

// Dequeue blocks for up to timeout waiting for the next task. A nil task with
// nil error means the wait timed out with nothing to do.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.EmailTask, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis BRPOP: %w", err)
	}

	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var task models.EmailTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode email task: %w", err)
	}

	return &task, nil
}

// Complete records a finished job's result, retained for the result TTL.
func (q *RedisQueue) Complete(ctx context.Context, jobID, result string) error {
	state, err := json.Marshal(models.JobState{Finished: true, Result: result})
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}

	if err := q.rdb.Set(ctx, statusKeyPrefix+jobID, state, q.resultTTL).Err(); err != nil {
		return fmt.Errorf("record job result: %w", err)
	}

	return nil
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return q.rdb.Ping(ctx).Err()
}
