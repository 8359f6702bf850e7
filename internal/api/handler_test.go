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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/covidreport/backend/internal/covid"
	"github.com/covidreport/backend/internal/models"
	"github.com/covidreport/backend/internal/queue"
	"github.com/covidreport/backend/internal/store"
)

// --- Fake user store ---

type fakeUsers struct {
	mu     sync.Mutex
	byMail map[string]*models.User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byMail: make(map[string]*models.User)}
}

func (f *fakeUsers) Create(_ context.Context, firstName, lastName, email, password, country string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byMail[email]; ok {
		return nil, store.ErrEmailTaken
	}
	f.nextID++
	u := &models.User{
		ID:           f.nextID,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Country:      country,
		PasswordHash: "hash:" + password,
	}
	f.byMail[email] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byMail[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.byMail {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, email, firstName, lastName, country string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byMail[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	if country != "" {
		u.Country = country
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byMail[email]
	if !ok {
		return store.ErrUserNotFound
	}
	u.PasswordHash = "hash:" + password
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byMail[email]; !ok {
		return store.ErrUserNotFound
	}
	delete(f.byMail, email)
	return nil
}

// --- Fake pipeline ---

type fakePipeline struct {
	lastRecipient string
	lastCountry   string
	err           error
	jobID         string
}

func (f *fakePipeline) Run(_ context.Context, recipient, country, startStr, endStr string) (*covid.Result, error) {
	f.lastRecipient = recipient
	f.lastCountry = country
	if f.err != nil {
		return nil, f.err
	}
	payload := map[string]json.RawMessage{
		"data": json.RawMessage(`{"timeline": []}`),
	}
	return &covid.Result{Payload: payload, JobID: f.jobID}, nil
}

// --- Fake job gateway ---

type fakeJobs struct {
	states map[string]models.JobState
}

func (f *fakeJobs) Status(_ context.Context, jobID string) (models.JobState, error) {
	state, ok := f.states[jobID]
	if !ok {
		return models.JobState{}, queue.ErrJobNotFound
	}
	return state, nil
}

// --- Test helpers ---

func testHandler(t *testing.T) (*Handler, *fakeUsers, *fakePipeline, *fakeJobs) {
	t.Helper()

	users := newFakeUsers()
	pipeline := &fakePipeline{jobID: "job-1"}
	jobs := &fakeJobs{states: make(map[string]models.JobState)}

	h := NewHandler(HandlerConfig{
		Users:    users,
		Pipeline: pipeline,
		Jobs:     jobs,
		Verify: func(hash, password string) bool {
			return hash == "hash:"+password
		},
	})

	return h, users, pipeline, jobs
}

func seedUser(t *testing.T, users *fakeUsers) *models.User {
	t.Helper()
	u, err := users.Create(context.Background(), "Admin", "User", "admin@example.com", "secret", "IN")
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func doJSON(t *testing.T, h *Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth {
		req.SetBasicAuth("admin@example.com", "secret")
	}

	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %v\n%s", err, rr.Body.String())
	}
	return out
}

// TestAuth_MissingCredentials verifies protected routes demand basic auth.
func TestAuth_MissingCredentials(t *testing.T) {
	h, users, _, _ := testHandler(t)
	seedUser(t, users)

	rr := doJSON(t, h, http.MethodGet, "/api/v1.0/user/get", "", false)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

// TestAuth_WrongPassword verifies bad credentials are rejected.
func TestAuth_WrongPassword(t *testing.T) {
	h, users, _, _ := testHandler(t)
	seedUser(t, users)

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/user/get", nil)
	req.SetBasicAuth("admin@example.com", "wrong")
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

// TestCreateUser verifies registration, missing fields, and duplicates.
func TestCreateUser(t *testing.T) {
	h, _, _, _ := testHandler(t)

	body := `{"first_name":"A","last_name":"B","email":"a@example.com","password":"pw","country":"IN"}`
	rr := doJSON(t, h, http.MethodPost, "/api/v1.0/user/add", body, false)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	// Missing fields
	rr = doJSON(t, h, http.MethodPost, "/api/v1.0/user/add", `{"email":"x@example.com"}`, false)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	// Duplicate email reported without creating
	rr = doJSON(t, h, http.MethodPost, "/api/v1.0/user/add", body, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if msg := decodeResponse(t, rr)["message"]; msg != "E-mail already exists!" {
		t.Errorf("message = %v", msg)
	}
}

// TestVerifyUser covers success, wrong password, and unknown user.
func TestVerifyUser(t *testing.T) {
	h, users, _, _ := testHandler(t)
	seedUser(t, users)

	rr := doJSON(t, h, http.MethodPost, "/api/v1.0/user/verify",
		`{"email":"admin@example.com","password":"secret"}`, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if msg := decodeResponse(t, rr)["message"]; msg != "Successfully logged-in." {
		t.Errorf("message = %v", msg)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1.0/user/verify",
		`{"email":"admin@example.com","password":"nope"}`, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if msg := decodeResponse(t, rr)["message"]; msg != "Password is incorrect." {
		t.Errorf("message = %v", msg)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1.0/user/verify",
		`{"email":"ghost@example.com","password":"x"}`, false)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

// TestGetUser covers the caller, all, and specific lookups.
func TestGetUser(t *testing.T) {
	h, users, _, _ := testHandler(t)
	seedUser(t, users)
	users.Create(context.Background(), "Other", "User", "other@example.com", "pw", "US")

	rr := doJSON(t, h, http.MethodGet, "/api/v1.0/user/get", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1.0/user/get?user=all", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if _, ok := decodeResponse(t, rr)["users"]; !ok {
		t.Error("expected users list")
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1.0/user/get?user=ghost@example.com", "", true)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

// TestUpdateUser covers profile updates and the immutable email rule.
func TestUpdateUser(t *testing.T) {
	h, users, _, _ := testHandler(t)
	seedUser(t, users)

	rr := doJSON(t, h, http.MethodPut, "/api/v1.0/user/update", `{"country":"US"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	u, _ := users.GetByEmail(context.Background(), "admin@example.com")
	if u.Country != "US" {
		t.Errorf("country = %s, want US", u.Country)
	}

	rr = doJSON(t, h, http.MethodPut, "/api/v1.0/user/update", `{"email":"new@example.com"}`, true)
	if msg := decodeResponse(t, rr)["message"]; msg != "E-mail can not be updated!" {
		t.Errorf("message = %v", msg)
	}

	rr = doJSON(t, h, http.MethodPut, "/api/v1.0/user/update", `{}`, true)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// TestUpdatePasswordAndDelete covers the remaining account operations.
func TestUpdatePasswordAndDelete(t *testing.T) {
	h, users, _, _ := testHandler(t)
	seedUser(t, users)

	rr := doJSON(t, h, http.MethodPut, "/api/v1.0/user/update-password", `{"password":"newpw"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	u, _ := users.GetByEmail(context.Background(), "admin@example.com")
	if u.PasswordHash != "hash:newpw" {
		t.Errorf("password hash not updated: %s", u.PasswordHash)
	}

	// Old password no longer authenticates.
	rr = doJSON(t, h, http.MethodDelete, "/api/v1.0/user/delete", "", true)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with stale password", rr.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1.0/user/delete", nil)
	req.SetBasicAuth("admin@example.com", "newpw")
	recorder := httptest.NewRecorder()
	h.Routes().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	if _, err := users.GetByEmail(context.Background(), "admin@example.com"); !errors.Is(err, store.ErrUserNotFound) {
		t.Error("user still exists after delete")
	}
}

// TestCovid_DefaultsToCallerCountry verifies the caller's registered country
// is used when none is supplied, and the dispatched job id is returned.
func TestCovid_DefaultsToCallerCountry(t *testing.T) {
	h, users, pipeline, _ := testHandler(t)
	seedUser(t, users)

	rr := doJSON(t, h, http.MethodGet, "/api/v1.0/covid", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	if pipeline.lastCountry != "IN" {
		t.Errorf("country = %s, want caller's IN", pipeline.lastCountry)
	}
	if pipeline.lastRecipient != "admin@example.com" {
		t.Errorf("recipient = %s", pipeline.lastRecipient)
	}
	if jobID := decodeResponse(t, rr)["job_id"]; jobID != "job-1" {
		t.Errorf("job_id = %v", jobID)
	}
}

// TestCovid_ExplicitCountry verifies the query parameter wins.
func TestCovid_ExplicitCountry(t *testing.T) {
	h, users, pipeline, _ := testHandler(t)
	seedUser(t, users)

	rr := doJSON(t, h, http.MethodGet, "/api/v1.0/covid?country=BR", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if pipeline.lastCountry != "BR" {
		t.Errorf("country = %s, want BR", pipeline.lastCountry)
	}
}

// TestCovid_ErrorMapping verifies the pipeline error taxonomy maps onto
// HTTP statuses.
func TestCovid_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "bad date", err: covid.ErrInvalidDateFormat, want: http.StatusBadRequest},
		{name: "upstream status passthrough", err: &covid.StatusError{Code: 503}, want: http.StatusServiceUnavailable},
		{name: "upstream not found", err: &covid.StatusError{Code: 404}, want: http.StatusNotFound},
		{name: "render failure", err: &covid.RenderError{Err: errors.New("boom")}, want: http.StatusInternalServerError},
		{name: "wrapped bad date", err: fmt.Errorf("resolve: %w", covid.ErrInvalidDateFormat), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, users, pipeline, _ := testHandler(t)
			seedUser(t, users)
			pipeline.err = tt.err

			rr := doJSON(t, h, http.MethodGet, "/api/v1.0/covid", "", true)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

// TestJobStatus covers finished, pending, and unknown job lookups.
func TestJobStatus(t *testing.T) {
	h, users, _, jobs := testHandler(t)
	seedUser(t, users)

	jobs.states["done"] = models.JobState{Finished: true, Result: "Mail was sent successfully."}
	jobs.states["waiting"] = models.JobState{Finished: false}

	rr := doJSON(t, h, http.MethodGet, "/api/v1.0/job/done", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if result := decodeResponse(t, rr)["result"]; result != "Mail was sent successfully." {
		t.Errorf("result = %v", result)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1.0/job/waiting", "", true)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1.0/job/expired-or-unknown", "", true)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
