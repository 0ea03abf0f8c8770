package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes registers every HTTP endpoint on a new ServeMux. The JSON API is
// wrapped in CORS using the same origin list that guards the socket.
func SetupRoutes(h *Handlers, allowedOrigins []string) http.Handler {
	api := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.WebSocket)
	mux.Handle("/api/username/check", api.Handler(http.HandlerFunc(h.CheckUsername)))
	mux.Handle("/api/rooms", api.Handler(http.HandlerFunc(h.ListRooms)))
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/metrics", h.Metrics)
	mux.HandleFunc("/test", h.TestPage)
	return mux
}
