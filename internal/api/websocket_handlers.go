package api

import (
	"net/http"

	"cloud-server/internal/auth"
	"cloud-server/internal/websocket"
)

// ServeWsHandler upgrades the connection and registers it with the hub
// under the caller's user ID. The token rides in the query string
// because browsers cannot set headers on websocket upgrades.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		s.logger.Debug().Msg("ws connection attempt without token")
		return
	}

	claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
	if err != nil {
		s.logger.Debug().Err(err).Msg("ws connection attempt with invalid token")
		return
	}

	identity := claims.Identity(s.config.Guild.GuildID, s.config.Guild.AllowedRoles)
	if !identity.Authorized {
		http.Error(w, "Cloud access requires community membership", http.StatusForbidden)
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	client := websocket.NewClient(s.wsHub, conn, identity.UserID)
	s.wsHub.Register <- client

	go client.ReadPump()
	go client.WritePump()
}
