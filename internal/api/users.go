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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/covidreport/backend/internal/models"
	"github.com/covidreport/backend/internal/store"
)

// userRequest covers the create/verify/update request bodies.
type userRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Country   string `json:"country"`
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" || req.Country == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, err := h.users.Create(r.Context(), req.FirstName, req.LastName, req.Email, req.Password, req.Country)
	if errors.Is(err, store.ErrEmailTaken) {
		writeJSON(w, http.StatusOK, map[string]string{
			"email":   req.Email,
			"message": "E-mail already exists!",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "User successfully created.",
	})
}

func (h *Handler) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	if !h.verify(user.PasswordHash, req.Password) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Password is incorrect.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": "Successfully logged-in.",
	})
}

func (h *Handler) handleGetUser(caller *models.User, w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("user")

	switch target {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{"user": caller})
	case "all":
		users, err := h.users.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	default:
		user, err := h.users.GetByEmail(r.Context(), target)
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to look up user")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}

func (h *Handler) handleUpdateUser(caller *models.User, w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Email != "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "E-mail can not be updated!",
		})
		return
	}

	if req.FirstName == "" && req.LastName == "" && req.Country == "" {
		writeError(w, http.StatusBadRequest, "no updatable fields supplied")
		return
	}

	user, err := h.users.Update(r.Context(), caller.Email, req.FirstName, req.LastName, req.Country)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": "User details successfully updated.",
	})
}

func (h *Handler) handleUpdatePassword(caller *models.User, w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.users.UpdatePassword(r.Context(), caller.Email, req.Password); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password successfully updated.",
	})
}

func (h *Handler) handleDeleteUser(caller *models.User, w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), caller.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "User successfully deleted.",
	})
}
