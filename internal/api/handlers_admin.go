package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"apigate/internal/models"
	"apigate/internal/storage"
)

// defaultAuditLimit caps the audit log page size when none is requested.
const defaultAuditLimit = 100

// reportKinds are the report types the admin surface can generate.
var reportKinds = []string{"users", "activity"}

// AdminListUsers returns all accounts
// GET /api/v1/admin/users
func (h *Handlers) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	allUsers, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to list users")
		return
	}

	responses := make([]*models.UserResponse, 0, len(allUsers))
	for _, user := range allUsers {
		responses = append(responses, models.NewUserResponse(user))
	}

	writeJSON(w, http.StatusOK, &models.ListUsersResponse{
		Users:      responses,
		TotalCount: len(responses),
	})
}

// AdminCreateUser provisions an account, optionally with an elevated role
// POST /api/v1/admin/users
func (h *Handlers) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), &req)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, models.ErrorCodeConflict, "Email address is already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to create user")
		return
	}

	h.audit(r, "user.create", "users/"+user.ID, user.Email)
	writeJSON(w, http.StatusCreated, models.NewUserResponse(user))
}

// AdminGetUser returns one account
// GET /api/v1/admin/users/{user_id}
func (h *Handlers) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	user, err := h.users.Get(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// AdminUpdateUser mutates an account's name, role or enabled flag
// PUT /api/v1/admin/users/{user_id}
func (h *Handlers) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	user, err := h.users.Update(r.Context(), userID, &req)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to update user")
		return
	}

	h.audit(r, "user.update", "users/"+userID, "")
	writeJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// AdminDeleteUser removes an account and its API keys
// DELETE /api/v1/admin/users/{user_id}
func (h *Handlers) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	err := h.users.Delete(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to delete user")
		return
	}

	h.audit(r, "user.delete", "users/"+userID, "")
	w.WriteHeader(http.StatusNoContent)
}

// AdminGetSettings returns all service settings
// GET /api/v1/admin/settings
func (h *Handlers) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.storage.Settings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, &models.SettingsResponse{
		Settings:  settings,
		UpdatedAt: time.Now().UTC(),
	})
}

// AdminUpdateSettings stores the given settings
// PUT /api/v1/admin/settings
func (h *Handlers) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	for key, value := range req.Settings {
		if err := h.storage.PutSetting(r.Context(), key, value); err != nil {
			writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to store settings")
			return
		}
	}

	h.audit(r, "settings.update", "settings", "")

	settings, err := h.storage.Settings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, &models.SettingsResponse{
		Settings:  settings,
		UpdatedAt: time.Now().UTC(),
	})
}

// AdminGetAuditLog returns the most recent audit entries
// GET /api/v1/admin/logs?limit=...
func (h *Handlers) AdminGetAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	entries, err := h.storage.AuditEntries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to load audit log")
		return
	}

	writeJSON(w, http.StatusOK, &models.AuditLogResponse{
		Entries:    entries,
		TotalCount: len(entries),
	})
}

// AdminListReports returns the report kinds the service can generate
// GET /api/v1/admin/reports
func (h *Handlers) AdminListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"kinds": reportKinds})
}

// AdminGenerateReport builds a summary report on demand
// POST /api/v1/admin/reports
func (h *Handlers) AdminGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	counts, err := h.buildReport(r.Context(), req.Kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to generate report")
		return
	}

	h.audit(r, "report.generate", "reports", req.Kind)

	writeJSON(w, http.StatusCreated, &models.ReportResponse{
		ID:          uuid.New().String(),
		Kind:        req.Kind,
		Counts:      counts,
		GeneratedAt: time.Now().UTC(),
	})
}

func (h *Handlers) buildReport(ctx context.Context, kind string) (map[string]int, error) {
	switch kind {
	case "users":
		allUsers, err := h.users.List(ctx)
		if err != nil {
			return nil, err
		}
		counts := map[string]int{"total": len(allUsers)}
		for _, user := range allUsers {
			counts["role."+user.Role]++
			if user.Enabled {
				counts["enabled"]++
			}
		}
		return counts, nil
	case "activity":
		entries, err := h.storage.AuditEntries(ctx, defaultAuditLimit)
		if err != nil {
			return nil, err
		}
		counts := map[string]int{"total": len(entries)}
		for _, entry := range entries {
			counts["action."+entry.Action]++
		}
		return counts, nil
	default:
		return nil, errors.New("unknown report kind")
	}
}

// audit records an admin-surface mutation. Failures are logged, never
// propagated: audit trouble must not fail the mutation it describes.
func (h *Handlers) audit(r *http.Request, action, resource, detail string) {
	actor := "anonymous"
	if key := GetAPIKey(r); key != nil {
		actor = key.UserID
	}

	entry := models.NewAuditEntry(actor, action, resource, detail)
	if err := h.storage.AppendAudit(r.Context(), entry); err != nil {
		slog.Error("Failed to append audit entry",
			"error", err,
			"action", action,
			"resource", resource)
	}
}
