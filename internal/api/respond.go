package api

import (
	"encoding/json"
	"net/http"

	"cloud-server/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its status code and JSON envelope.
// I/O failure detail only reaches the client in debug mode; the full
// error always goes to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindIOFailure {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, apperrors.HTTPStatus(kind), map[string]string{
		"error": apperrors.UserMessage(err, s.config.Debug),
	})
}
