package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/chat"
	"github.com/supahealth/supahealth/internal/ingest"
	"github.com/supahealth/supahealth/internal/store"
)

// NewRouter wires the full API surface onto a gorilla/mux router.
func NewRouter(s store.Store, issuer *auth.TokenIssuer, provider chat.Provider, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(RequestID(logger))
	router.Use(AccessLog)
	router.Use(Recover)

	authHandler := NewAuthHandler(s.Users(), issuer)
	metricHandler := NewMetricHandler(ingest.NewEngine(s.Metrics(), logger), s.Metrics())
	goalHandler := NewGoalHandler(s.Goals())
	chatHandler := NewChatHandler(chat.NewService(s.Chats(), provider, logger))
	healthHandler := NewHealthHandler(s)

	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Public endpoints
	v1.HandleFunc("/system/health", healthHandler.Check).Methods("GET")
	v1.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	v1.HandleFunc("/auth/signin", authHandler.Signin).Methods("POST")

	// Everything below requires a valid bearer token.
	protected := v1.NewRoute().Subrouter()
	protected.Use(auth.Middleware(issuer))

	protected.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST")
	protected.HandleFunc("/auth/me", authHandler.Me).Methods("GET")

	protected.HandleFunc("/metrics/{kind}/bulk", metricHandler.BulkUpsert).Methods("POST")
	protected.HandleFunc("/metrics/{kind}", metricHandler.List).Methods("GET")
	protected.HandleFunc("/metrics/{kind}/{recordId}", metricHandler.Get).Methods("GET")
	protected.HandleFunc("/metrics/{kind}/{recordId}", metricHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/goals/{kind}", goalHandler.Upsert).Methods("PUT")
	protected.HandleFunc("/goals/{kind}", goalHandler.List).Methods("GET")
	protected.HandleFunc("/goals/{kind}/{goalId}", goalHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/chat", chatHandler.Send).Methods("POST")
	protected.HandleFunc("/chat/history", chatHandler.History).Methods("GET")

	return router
}
