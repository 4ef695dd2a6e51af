package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/middleware"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware on the API;
	// the upgrade endpoint accepts any origin that carried a valid token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the HTTP handler for GET /ws. It must sit behind the
// auth middleware, which resolves the connection's user profile.
func Handler(hub *Hub, acker ReadAcker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile := middleware.GetProfile(r.Context())
		if profile.ID == "" {
			http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed",
				zap.String("user_id", profile.ID),
				zap.Error(err),
			)
			return
		}

		client := NewClient(hub, conn, profile, acker, log)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}
}
