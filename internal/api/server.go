package api

import (
	"net/http"

	"cloud-server/internal/cloud"
	"cloud-server/internal/config"
	"cloud-server/internal/websocket"

	"github.com/rs/zerolog"
)

type Server struct {
	config  *config.Config
	service *cloud.Service
	wsHub   *websocket.Hub
	logger  zerolog.Logger
}

func NewServer(cfg *config.Config, service *cloud.Service, wsHub *websocket.Hub, logger zerolog.Logger) *Server {
	return &Server{
		config:  cfg,
		service: service,
		wsHub:   wsHub,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
