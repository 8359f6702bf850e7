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

package api

import (
	"errors"
	"net/http"

	"github.com/covidreport/backend/internal/covid"
	"github.com/covidreport/backend/internal/models"
	"github.com/covidreport/backend/internal/queue"
)

// handleCovid runs the statistics pipeline for the caller. The country
// defaults to the caller's registered country; start-date/end-date bound the
// timeline. The filtered upstream payload is returned as-is, with the job id
// of the dispatched email alongside.
func (h *Handler) handleCovid(caller *models.User, w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	country := query.Get("country")
	if country == "" {
		country = caller.Country
	}

	result, err := h.pipeline.Run(r.Context(), caller.Email, country,
		query.Get("start-date"), query.Get("end-date"))
	if err != nil {
		status := statusForPipelineError(err)
		writeError(w, status, err.Error())
		return
	}

	payload := map[string]any{}
	for k, v := range result.Payload {
		payload[k] = v
	}
	if result.JobID != "" {
		payload["job_id"] = result.JobID
	}

	writeJSON(w, http.StatusOK, payload)
}

// statusForPipelineError maps pipeline failures onto HTTP statuses:
// bad dates are the client's fault, upstream statuses pass through
// unchanged, and everything else is a server error.
func statusForPipelineError(err error) int {
	if errors.Is(err, covid.ErrInvalidDateFormat) {
		return http.StatusBadRequest
	}

	var statusErr *covid.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}

	return http.StatusInternalServerError
}

// handleJobStatus reports whether an email job has finished. 200 with the
// result when done, 202 with a placeholder while pending, 404 when the id is
// unknown or its result has expired.
func (h *Handler) handleJobStatus(_ *models.User, w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	state, err := h.jobs.Status(r.Context(), jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up job")
		return
	}

	if state.Finished {
		writeJSON(w, http.StatusOK, map[string]string{"result": state.Result})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"result": "Nay!"})
}
