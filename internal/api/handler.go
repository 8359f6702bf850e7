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

// Package api exposes the REST surface: user account CRUD, the statistics
// pipeline endpoint, and the email job status lookup.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/covidreport/backend/internal/covid"
	"github.com/covidreport/backend/internal/models"
	"github.com/covidreport/backend/internal/store"
)

// UserStore is the account persistence the handlers need.
type UserStore interface {
	Create(ctx context.Context, firstName, lastName, email, password, country string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, email, firstName, lastName, country string) (*models.User, error)
	UpdatePassword(ctx context.Context, email, password string) error
	Delete(ctx context.Context, email string) error
}

// PipelineRunner runs the statistics pipeline for one request.
type PipelineRunner interface {
	Run(ctx context.Context, recipient, country, startStr, endStr string) (*covid.Result, error)
}

// JobStatusGateway looks up the state of a dispatched email job.
type JobStatusGateway interface {
	Status(ctx context.Context, jobID string) (models.JobState, error)
}

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the REST API.
type Handler struct {
	users    UserStore
	pipeline PipelineRunner
	jobs     JobStatusGateway
	verify   func(hash, password string) bool

	dbPing    Pinger
	queuePing Pinger
}

// HandlerConfig holds dependencies for the API handler.
type HandlerConfig struct {
	Users    UserStore
	Pipeline PipelineRunner
	Jobs     JobStatusGateway

	// Verify checks a plaintext password against a stored hash. Defaults to
	// bcrypt; overridable so handler tests don't pay the bcrypt cost.
	Verify func(hash, password string) bool

	DBPing    Pinger
	QueuePing Pinger
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	verify := cfg.Verify
	if verify == nil {
		verify = store.VerifyPassword
	}
	return &Handler{
		users:     cfg.Users,
		pipeline:  cfg.Pipeline,
		jobs:      cfg.Jobs,
		verify:    verify,
		dbPing:    cfg.DBPing,
		queuePing: cfg.QueuePing,
	}
}

// Routes registers all endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleIntro)
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("POST /api/v1.0/user/add", h.handleCreateUser)
	mux.HandleFunc("POST /api/v1.0/user/verify", h.handleVerifyUser)
	mux.HandleFunc("GET /api/v1.0/user/get", h.withAuth(h.handleGetUser))
	mux.HandleFunc("PUT /api/v1.0/user/update", h.withAuth(h.handleUpdateUser))
	mux.HandleFunc("PUT /api/v1.0/user/update-password", h.withAuth(h.handleUpdatePassword))
	mux.HandleFunc("DELETE /api/v1.0/user/delete", h.withAuth(h.handleDeleteUser))

	mux.HandleFunc("GET /api/v1.0/covid", h.withAuth(h.handleCovid))
	mux.HandleFunc("GET /api/v1.0/job/{id}", h.withAuth(h.handleJobStatus))

	return mux
}

// authedHandler receives the verified caller explicitly rather than through
// request context.
type authedHandler func(user *models.User, w http.ResponseWriter, r *http.Request)

// withAuth resolves HTTP Basic credentials against the user store and passes
// the caller into next.
func (h *Handler) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="covidreport"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := h.users.GetByEmail(r.Context(), email)
		if err != nil || !h.verify(user.PasswordHash, password) {
			slog.Info("rejected credentials", "email", email)
			w.Header().Set("WWW-Authenticate", `Basic realm="covidreport"`)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		next(user, w, r)
	}
}

func (h *Handler) handleIntro(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "covidreport: RESTful COVID statistics API",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.queuePing != nil {
		if err := h.queuePing.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unhealthy")
			return
		}
	}
	if h.dbPing != nil {
		if err := h.dbPing.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "postgres unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
