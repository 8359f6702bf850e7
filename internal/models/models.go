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

// Package models defines the data structures shared across the service.
package models

// User is a registered account. The password hash never leaves the process.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Country      string `json:"country"`
	PasswordHash string `json:"-"`
}

// TimelinePoint is one reporting day from the upstream statistics API.
type TimelinePoint struct {
	Date      string `json:"date"`
	Confirmed int64  `json:"confirmed"`
	Recovered int64  `json:"recovered"`
	Deaths    int64  `json:"deaths"`
}

// EmailTask describes one "send the chart by mail" job handed to the queue.
//
// This struct's JSON serialisation is the queue contract between the API
// server and the mail worker. Both sides must agree on it.
type EmailTask struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Country   string `json:"country"`
	ChartFile string `json:"chart_file"`
}

// JobState is the queryable state of a dispatched email job.
type JobState struct {
	Finished bool   `json:"finished"`
	Result   string `json:"result,omitempty"`
}
