package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zapfunnel/flow-service/internal/auth"
	"github.com/zapfunnel/flow-service/pkg/types"
)

// Server wraps the HTTP router and its handlers.
type Server struct {
	router   *mux.Router
	handlers *Handlers
}

// NewServer creates a new API server with all routes configured.
// authMW and limiter may be nil when the corresponding feature is off.
func NewServer(handlers *Handlers, authMW *auth.Middleware, limiter *auth.PerIPRateLimiter) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: handlers,
	}
	s.setupRoutes(authMW, limiter)
	return s
}

// Router returns the configured router, ready to serve.
func (s *Server) Router() http.Handler {
	return otelhttp.NewHandler(s.router, "flow-service")
}

func (s *Server) setupRoutes(authMW *auth.Middleware, limiter *auth.PerIPRateLimiter) {
	s.router.Use(s.handlers.RecoveryMiddleware)
	s.router.Use(s.handlers.LoggingMiddleware)
	s.router.Use(s.handlers.CORSMiddleware)
	if limiter != nil {
		s.router.Use(limiter.Handler)
	}
	if authMW != nil {
		s.router.Use(authMW.Handler)
	}

	// Health and metrics stay outside the API prefix so probes and
	// scrapers skip auth.
	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/ready", s.handlers.Ready).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Flow management
	api.HandleFunc("/flows", s.handlers.CreateFlow).Methods("POST")
	api.HandleFunc("/flows", s.handlers.ListFlows).Methods("GET")
	api.HandleFunc("/flows/import", s.handlers.ImportFlow).Methods("POST")
	api.HandleFunc("/flows/{id}", s.handlers.GetFlow).Methods("GET")
	api.HandleFunc("/flows/{id}", s.handlers.SaveFlow).Methods("PUT")
	api.HandleFunc("/flows/{id}", s.handlers.DeleteFlow).Methods("DELETE")
	api.HandleFunc("/flows/{id}/rename", s.handlers.RenameFlow).Methods("POST")
	api.HandleFunc("/flows/{id}/duplicate", s.handlers.DuplicateFlow).Methods("POST")
	api.HandleFunc("/flows/{id}/import", s.handlers.ImportIntoFlow).Methods("POST")

	// Graph mutations
	api.HandleFunc("/flows/{id}/nodes", s.handlers.AddNode).Methods("POST")
	api.HandleFunc("/flows/{id}/nodes/{nodeId}", s.handlers.UpdateNode).Methods("PATCH")
	api.HandleFunc("/flows/{id}/nodes/{nodeId}", s.handlers.RemoveNode).Methods("DELETE")
	api.HandleFunc("/flows/{id}/edges", s.handlers.AddEdge).Methods("POST")
	api.HandleFunc("/flows/{id}/edges/{edgeId}", s.handlers.UpdateEdge).Methods("PATCH")
	api.HandleFunc("/flows/{id}/edges/{edgeId}", s.handlers.RemoveEdge).Methods("DELETE")
	api.HandleFunc("/flows/{id}/edges/{edgeId}/label", s.handlers.UpdateEdgeLabel).Methods("PUT")
	api.HandleFunc("/flows/{id}/paste", s.handlers.Paste).Methods("POST")

	// Validation, export, archive
	api.HandleFunc("/flows/{id}/validate", s.handlers.ValidateFlow).Methods("GET", "POST")
	api.HandleFunc("/flows/{id}/export", s.handlers.ExportFlow).Methods("GET")

	// Snapshot history is a paid feature when auth is enforced.
	proOnly := func(next http.Handler) http.Handler { return next }
	if authMW != nil {
		proOnly = auth.RequirePlan(types.PlanPro)
	}
	api.Handle("/flows/{id}/archive", proOnly(http.HandlerFunc(s.handlers.ArchiveFlow))).Methods("POST")
	api.Handle("/flows/{id}/archive", proOnly(http.HandlerFunc(s.handlers.ListArchive))).Methods("GET")
	api.Handle("/flows/{id}/archive/download", proOnly(http.HandlerFunc(s.handlers.DownloadArchive))).Methods("GET")

	// Usage and simulation
	api.HandleFunc("/usage", s.handlers.Usage).Methods("GET")
	api.HandleFunc("/flows/{id}/simulate", s.handlers.SimulateFlow).Methods("POST")
	api.HandleFunc("/flows/{id}/simulate/ws", s.handlers.SimulateWS).Methods("GET")
}
