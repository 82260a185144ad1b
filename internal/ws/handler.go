package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/taskrooms/taskrooms/internal/auth"
	"github.com/taskrooms/taskrooms/internal/broker"
)

// Handler upgrades authenticated HTTP requests to websocket connections.
type Handler struct {
	log        zerolog.Logger
	auth       auth.Authenticator
	broker     *broker.Broker
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewHandler(log zerolog.Logger, a auth.Authenticator, b *broker.Broker, sendBuffer int) *Handler {
	return &Handler{
		log:    log,
		auth:   a,
		broker: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sendBuffer: sendBuffer,
	}
}

// ServeHTTP authenticates the request, upgrades it, and starts the pumps.
// An unauthenticated request is refused before any event is processed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.auth.Principal(r.Context(), bearerToken(r))
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(uuid.New().String(), principal, conn, h.broker, h.log, h.sendBuffer)
	h.log.Info().
		Str("conn", client.ID()).
		Str("user", principal.Username).
		Msg("websocket connected")

	go client.writePump()
	// The read pump owns the connection lifetime; it must not use r.Context(),
	// which ends when this handler returns.
	go client.readPump(context.Background())
}

// bearerToken extracts the session token from the Authorization header or,
// for browser websocket clients that cannot set headers, the token query
// parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
