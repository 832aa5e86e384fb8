package api

import (
	"encoding/json"
	"net/http"

	"cloud-server/internal/models"
)

type ShareRequest struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsPublic bool   `json:"isPublic"`
}

type ShareResponse struct {
	File     *models.File `json:"file"`
	ShareURL string       `json:"shareUrl,omitempty"`
}

func (s *Server) shareResponse(file *models.File) ShareResponse {
	resp := ShareResponse{File: file}
	if file.IsPublic && file.ShareToken != nil {
		resp.ShareURL = "/api/v1/cloud/download?token=" + *file.ShareToken
	}
	return resp
}

// @Summary      Toggle public sharing
// @Description  Making a file public mints a share token; making it private kills the token permanently. Re-publishing mints a fresh one.
// @Tags         share
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ShareRequest  true  "Target entry and desired state"
// @Success      200      {object}  ShareResponse
// @Router       /cloud/share [post]
func (s *Server) ShareHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "File name is required", http.StatusBadRequest)
		return
	}

	record, err := s.service.GetOwnFile(r.Context(), identity, req.Path, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.service.SetPublic(r.Context(), identity, record.ID, req.IsPublic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.shareResponse(updated))
}

// @Summary      Inspect share state
// @Tags         share
// @Produce      json
// @Security     BearerAuth
// @Param        name  query     string  true   "Entry name"
// @Param        path  query     string  false  "Folder path"
// @Success      200   {object}  ShareResponse
// @Router       /cloud/share [get]
func (s *Server) GetShareHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "File name is required", http.StatusBadRequest)
		return
	}

	record, err := s.service.GetOwnFile(r.Context(), identity, r.URL.Query().Get("path"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	file, err := s.service.GetShareState(r.Context(), identity, record.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.shareResponse(file))
}

// @Summary      Resolve a share token
// @Description  Anonymous metadata lookup. Tokens stop resolving the moment the file goes private.
// @Tags         share
// @Produce      json
// @Param        token  query     string  true  "Share token"
// @Success      200    {object}  models.File
// @Failure      404    {object}  map[string]string "Not found"
// @Router       /cloud/share/public [get]
func (s *Server) PublicShareInfoHandler(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.ResolveShareToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

type GrantPermissionRequest struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	UserID     string `json:"userId"`
	Permission string `json:"permission"`
}

func validPermissionLevel(level string) bool {
	return level == models.PermissionRead || level == models.PermissionWrite || level == models.PermissionAdmin
}

func (s *Server) GrantPermissionHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	var req GrantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.UserID == "" {
		http.Error(w, "File name and user ID are required", http.StatusBadRequest)
		return
	}
	if !validPermissionLevel(req.Permission) {
		http.Error(w, "Permission must be one of: read, write, admin", http.StatusBadRequest)
		return
	}

	record, err := s.service.GetOwnFile(r.Context(), identity, req.Path, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	perm, err := s.service.GrantPermission(r.Context(), identity, record.ID, req.UserID, req.Permission)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, perm)
}

func (s *Server) RevokePermissionHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	name := r.URL.Query().Get("name")
	userID := r.URL.Query().Get("userId")
	if name == "" || userID == "" {
		http.Error(w, "File name and user ID are required", http.StatusBadRequest)
		return
	}

	record, err := s.service.GetOwnFile(r.Context(), identity, r.URL.Query().Get("path"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.service.RevokePermission(r.Context(), identity, record.ID, userID); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListPermissionsHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "File name is required", http.StatusBadRequest)
		return
	}

	record, err := s.service.GetOwnFile(r.Context(), identity, r.URL.Query().Get("path"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	perms, err := s.service.ListPermissions(r.Context(), identity, record.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, perms)
}
