// Package dashboard serves the read-only teacher API next to the bot.
package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"smarttest/internal/auth"
	"smarttest/pkg/websocket"
)

// NewRouter wires every dashboard route.
func NewRouter(h *Handler, authHandler *auth.Handler, authService *auth.Service, hub *websocket.Hub, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", h.Health).Methods("GET")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(authService))
	apiRouter.HandleFunc("/tests", h.GetMyTests).Methods("GET")
	apiRouter.HandleFunc("/tests/{code}", h.GetTest).Methods("GET")
	apiRouter.HandleFunc("/tests/{code}/results", h.GetResults).Methods("GET")

	router.HandleFunc("/ws/{code}", hub.HandleWebSocket)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return corsMiddleware.Handler(router)
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}
