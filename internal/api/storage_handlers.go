package api

import (
	"encoding/json"
	"net/http"
)

// @Summary      Get storage usage
// @Tags         storage
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.StorageStats
// @Router       /cloud/storage [get]
func (s *Server) GetStorageHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	stats, err := s.service.Usage(r.Context(), identity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type SetLimitRequest struct {
	UserID  string  `json:"userId"`
	LimitGB float64 `json:"limitGB"`
}

// SetOwnLimitHandler lets an admin adjust their own limit without going
// through the admin surface. Mounted behind RequireAdmin.
func (s *Server) SetOwnLimitHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	var req SetLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LimitGB <= 0 {
		http.Error(w, "limitGB must be positive", http.StatusBadRequest)
		return
	}

	record, err := s.service.AdminSetLimit(r.Context(), identity.UserID, req.LimitGB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// @Summary      List all storage records
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.UserStorage
// @Router       /admin/storage [get]
func (s *Server) AdminListStorageHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.AdminListStorage(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// @Summary      Override a user's storage limit
// @Description  Limit is given in gigabytes, fractional values allowed.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SetLimitRequest  true  "Target user and limit"
// @Success      200      {object}  models.UserStorage
// @Router       /admin/storage [post]
func (s *Server) AdminSetLimitHandler(w http.ResponseWriter, r *http.Request) {
	var req SetLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if req.LimitGB <= 0 {
		http.Error(w, "limitGB must be positive", http.StatusBadRequest)
		return
	}

	record, err := s.service.AdminSetLimit(r.Context(), req.UserID, req.LimitGB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type RecalculateRequest struct {
	UserID string `json:"userId"`
}

// AdminRecalculateHandler forces an immediate recount of one user's
// usage from disk, without waiting for the background sweep.
func (s *Server) AdminRecalculateHandler(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	record, err := s.service.AdminRecalculate(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
