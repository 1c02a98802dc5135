package websocket

import (
	"log"
	"net/http"
	"strings"

	"commentengine/internal/util"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development, restrict in production
		return true
	},
}

// ServeWS handles websocket requests from clients. Identity comes from the
// validated JWT; moderators are auto-joined to the moderator topic and every
// client to its private user topic.
func ServeWS(hub *Hub, gateway Gateway, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract token from query parameter or header
		token := r.URL.Query().Get("token")
		if token == "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
			}
		}

		if token == "" {
			http.Error(w, "Authorization token required", http.StatusUnauthorized)
			return
		}

		// Validate JWT token
		claims, err := util.ValidateToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		// Upgrade connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		client := NewClient(hub, gateway, conn, claims.UserID, claims.Username, claims.Role)
		hub.Register(client)

		// Private topic for targeted notification delivery.
		hub.Join(client, UserTopic(claims.UserID))

		// Role claim from the signed token, not client-declared intent.
		if client.isModerator() {
			hub.Join(client, ModeratorTopic())
		}

		go client.Start()
	}
}
