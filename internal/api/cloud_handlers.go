package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type CreateFolderRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// @Summary      Create a folder
// @Description  Creates a folder at the given path in the caller's cloud area. The name is sanitized to [a-zA-Z0-9-_].
// @Tags         cloud
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateFolderRequest  true  "Folder name and parent path"
// @Success      201      {object}  models.File
// @Failure      409      {object}  map[string]string "Conflict"
// @Router       /cloud/folders [post]
func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Folder name cannot be empty", http.StatusBadRequest)
		return
	}

	folder, err := s.service.CreateFolder(r.Context(), identity, req.Path, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// @Summary      List root entries
// @Tags         cloud
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.File
// @Router       /cloud/folders [get]
func (s *Server) ListRootHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	files, err := s.service.ListFolder(r.Context(), identity, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// @Summary      Upload a file
// @Description  Multipart upload. Fields: file (content), path (target folder, optional), isPublic (optional). Quota and name conflicts are checked before anything lands.
// @Tags         cloud
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  models.File
// @Failure      409  {object}  map[string]string "Conflict"
// @Failure      413  {object}  map[string]string "Quota exceeded"
// @Router       /cloud/upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	path := r.FormValue("path")
	isPublic := r.FormValue("isPublic") == "true"

	var mimeType *string
	if ct := handler.Header.Get("Content-Type"); ct != "" {
		mimeType = &ct
	}

	created, err := s.service.Upload(r.Context(), identity, path, handler.Filename, mimeType, handler.Size, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if isPublic {
		created, err = s.service.SetPublic(r.Context(), identity, created.ID, true)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, created)
}

// @Summary      List a directory
// @Tags         cloud
// @Produce      json
// @Security     BearerAuth
// @Param        path  query    string  false  "Folder path, empty for root"
// @Success      200   {array}  models.File
// @Router       /cloud/files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	if r.URL.Query().Get("all") == "true" {
		files, err := s.service.ListAll(r.Context(), identity)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, files)
		return
	}

	files, err := s.service.ListFolder(r.Context(), identity, r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// @Summary      Download a file
// @Description  Authenticated download by name and path, or anonymous download by share token.
// @Tags         cloud
// @Produce      octet-stream
// @Param        name   query  string  false  "File name (with path, authenticated)"
// @Param        path   query  string  false  "Folder path"
// @Param        token  query  string  false  "Share token (anonymous, public files only)"
// @Success      200
// @Failure      404  {object}  map[string]string "Not found"
// @Router       /cloud/download [get]
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("token"); token != "" {
		file, rc, err := s.service.DownloadShared(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer rc.Close()
		streamFile(w, file.Name, file.MimeType, file.SizeBytes, rc)
		return
	}

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

	file, rc, err := s.service.Download(r.Context(), identity, record.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()
	streamFile(w, file.Name, file.MimeType, file.SizeBytes, rc)
}

// DownloadDispatchHandler serves token downloads anonymously and sends
// everything else through the auth chain. Both forms live on the same
// route.
func (s *Server) DownloadDispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != "" {
		s.DownloadHandler(w, r)
		return
	}
	s.AuthMiddleware(s.RequireMember(http.HandlerFunc(s.DownloadHandler))).ServeHTTP(w, r)
}

// DownloadByIDHandler serves shared-with-me content: any record the
// caller may read, addressed by ID.
func (s *Server) DownloadByIDHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	fileID := r.URL.Query().Get("id")
	if fileID == "" {
		http.Error(w, "File ID is required", http.StatusBadRequest)
		return
	}

	file, rc, err := s.service.Download(r.Context(), identity, fileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()
	streamFile(w, file.Name, file.MimeType, file.SizeBytes, rc)
}

func streamFile(w http.ResponseWriter, name string, mimeType *string, size int64, rc io.Reader) {
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	if mimeType != nil && *mimeType != "" {
		w.Header().Set("Content-Type", *mimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))

	io.Copy(w, rc)
}

// @Summary      Delete a file or folder
// @Description  Removes the entry at (path, name). Folders go with their whole subtree; quota is credited back.
// @Tags         cloud
// @Security     BearerAuth
// @Param        name  query  string  true   "Entry name"
// @Param        path  query  string  false  "Folder path"
// @Success      204
// @Router       /cloud/files [delete]
func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "File name is required", http.StatusBadRequest)
		return
	}

	if err := s.service.Delete(r.Context(), identity, r.URL.Query().Get("path"), name); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
