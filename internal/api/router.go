package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskrooms/taskrooms/internal/api/recovery"
	"github.com/taskrooms/taskrooms/internal/auth"
	"github.com/taskrooms/taskrooms/internal/store"
)

// NewRouter creates the HTTP router: auth and room endpoints, health, and the
// websocket upgrade. The websocket handler is passed in so this package does
// not depend on the transport.
func NewRouter(authSvc *auth.Service, s store.Store, pinger Pinger, wsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	authHandler := NewAuthHandler(authSvc)
	roomHandler := NewRoomHandler(authSvc, s)
	healthHandler := NewHealthHandler(pinger)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStorageHealth).Methods("GET")

	// Auth endpoints
	router.HandleFunc("/api/users", authHandler.Register).Methods("POST")
	router.HandleFunc("/api/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/api/logout", authHandler.Logout).Methods("POST")

	// Room endpoints
	router.HandleFunc("/api/rooms", roomHandler.ListRooms).Methods("GET")
	router.HandleFunc("/api/rooms", roomHandler.CreateRoom).Methods("POST")
	router.HandleFunc("/api/rooms/{name}/invite", roomHandler.Invite).Methods("POST")

	// Realtime endpoint
	router.Handle("/ws", wsHandler).Methods("GET")

	return router
}
