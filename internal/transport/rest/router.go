package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/talentfold/pulse/internal/service"
	"github.com/talentfold/pulse/internal/transport/rest/handler"
	"github.com/talentfold/pulse/internal/transport/rest/middleware"
	"github.com/talentfold/pulse/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	GraphService     *service.GraphService
	SessionService   *service.SessionService
	EpisodeService   *service.EpisodeService
	AggregateService *service.AggregateService
	NarrativeService *service.NarrativeService
	WSHandler        *ws.Handler
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(c.AuthService)
	graphHandler := handler.NewGraphHandler(c.GraphService)
	sessionHandler := handler.NewSessionHandler(c.SessionService)
	episodeHandler := handler.NewEpisodeHandler(c.EpisodeService)
	profileHandler := handler.NewProfileHandler(c.AggregateService, c.NarrativeService)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Session routes are public: respondent clients hold only their session id
	v1.HandleFunc("/sessions", sessionHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/answers", sessionHandler.Submit).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/resume", sessionHandler.Resume).Methods("GET", "OPTIONS")
	v1.HandleFunc("/graphs/{graphId}", graphHandler.Get).Methods("GET", "OPTIONS")

	// WebSocket route (token rides in a query param)
	v1.HandleFunc("/ws/subjects/{subjectId}", c.WSHandler.SubjectWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Operator routes (require admin auth)
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)

	adminRoutes.HandleFunc("/auth/subjects/{subjectId}/token", authHandler.SubjectToken).Methods("POST", "OPTIONS")

	adminRoutes.HandleFunc("/graphs", graphHandler.Publish).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/graphs", graphHandler.List).Methods("GET", "OPTIONS")

	adminRoutes.HandleFunc("/sessions/{sessionId}/complete", sessionHandler.ForceComplete).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/maintenance/sweep", sessionHandler.Sweep).Methods("POST", "OPTIONS")

	adminRoutes.HandleFunc("/episodes", episodeHandler.Score).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/episodes/{episodeId}", episodeHandler.Get).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/episodes/{episodeId}/retry", episodeHandler.Retry).Methods("POST", "OPTIONS")

	adminRoutes.HandleFunc("/subjects/{subjectId}/episodes", episodeHandler.ListBySubject).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/subjects/{subjectId}/profile", profileHandler.Get).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/subjects/{subjectId}/profile/recompute", profileHandler.Recompute).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/subjects/{subjectId}/fingerprint", profileHandler.Fingerprint).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/subjects/{subjectId}/narrative", profileHandler.Narrative).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/subjects/{subjectId}/narrative/regenerate", profileHandler.Regenerate).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
