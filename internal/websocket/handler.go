package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/cohabit/internal/auth"
)

// HouseholdResolver looks up the household a user currently belongs to,
// returning 0 when they have none.
type HouseholdResolver interface {
	HouseholdIDForUser(ctx context.Context, userID int64) (int64, error)
}

// HandleWebSocket upgrades an authenticated request and streams the caller's
// household events until the connection closes. It must be mounted behind
// RequireAuth.
func HandleWebSocket(hub *Hub, households HouseholdResolver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		householdID, err := households.HouseholdIDForUser(r.Context(), userID)
		if err != nil {
			logger.Error("resolve household", "error", err, "user_id", userID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// The server's read and write timeouts would cut long-lived streams.
		rc := http.NewResponseController(w)
		rc.SetReadDeadline(time.Time{})
		rc.SetWriteDeadline(time.Time{})

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, userID, householdID)
		client.Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
