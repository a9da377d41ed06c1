package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"raceway/internal/engine"
	"raceway/pkg/interfaces"
	"raceway/pkg/types"
)

// EngineReader is the API's read-only view of the engine, kept narrow so
// tests can substitute a fixed snapshot.
type EngineReader interface {
	Rooms() []engine.RoomSummary
	GetStats() engine.Stats
}

// Server is the HTTP API: health, live room listing, and race history. No
// business logic lives here, only HTTP handling and JSON serialization.
type Server struct {
	engine  EngineReader
	results interfaces.ResultStore
	router  *http.ServeMux

	allowedOrigins []string
}

func NewServer(eng EngineReader, results interfaces.ResultStore, allowedOrigins []string) *Server {
	s := &Server{
		engine:         eng,
		results:        results,
		router:         http.NewServeMux(),
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Registered without a method pattern so CORS preflights reach the
	// middleware instead of the mux's 405.
	s.router.Handle("/health", s.cors(http.HandlerFunc(s.health)))
	s.router.Handle("/api/rooms", s.cors(http.HandlerFunc(s.listRooms)))
	s.router.Handle("/api/results", s.cors(http.HandlerFunc(s.listResults)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Database  string       `json:"database"`
	Engine    engine.Stats `json:"engine"`
}

type roomsResponse struct {
	Rooms []engine.RoomSummary `json:"rooms"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Database:  "disabled",
		Engine:    s.engine.GetStats(),
	}

	if s.results != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.results.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unhealthy"
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "healthy"
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.engine.Rooms()
	if rooms == nil {
		rooms = []engine.RoomSummary{}
	}
	s.writeJSON(w, http.StatusOK, roomsResponse{Rooms: rooms})
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.sendError(w, "race history is disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			s.sendError(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	results, err := s.results.ListRecentResults(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list race results")
		s.sendError(w, "failed to list race results", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []*types.RaceResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// cors mirrors the allow-list the WebSocket upgrader uses. An empty list
// allows any origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	for _, a := range s.allowedOrigins {
		if strings.Contains(origin, a) {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: status})
}
