package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"raceway/internal/engine"
	"raceway/pkg/types"
)

type fakeEngineReader struct {
	rooms []engine.RoomSummary
	stats engine.Stats
}

func (f *fakeEngineReader) Rooms() []engine.RoomSummary { return f.rooms }
func (f *fakeEngineReader) GetStats() engine.Stats      { return f.stats }

type fakeResultStore struct {
	results   []*types.RaceResult
	listErr   error
	healthErr error
	lastLimit int
}

func (f *fakeResultStore) RecordResults(ctx context.Context, roomID string, mapID int, rankings []types.RankEntry) error {
	return nil
}

func (f *fakeResultStore) ListRecentResults(ctx context.Context, limit int) ([]*types.RaceResult, error) {
	f.lastLimit = limit
	return f.results, f.listErr
}

func (f *fakeResultStore) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeResultStore) Close() error                          { return nil }

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHealth_Healthy(t *testing.T) {
	eng := &fakeEngineReader{stats: engine.Stats{QueueLength: 3, ActiveConnections: 5, LiveRooms: 1}}
	server := NewServer(eng, &fakeResultStore{}, nil)

	rec := doRequest(t, server, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got %q", resp.Status)
	}
	if resp.Database != "healthy" {
		t.Errorf("Expected database 'healthy', got %q", resp.Database)
	}
	if resp.Engine.QueueLength != 3 {
		t.Errorf("Expected queue length 3, got %d", resp.Engine.QueueLength)
	}
}

func TestHealth_DegradedOnDatabaseFailure(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, &fakeResultStore{healthErr: errors.New("disk full")}, nil)

	rec := doRequest(t, server, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "degraded" || resp.Database != "unhealthy" {
		t.Errorf("Unexpected health payload: %+v", resp)
	}
}

func TestHealth_WithoutStore(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, nil, nil)

	rec := doRequest(t, server, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Database != "disabled" {
		t.Errorf("Expected database 'disabled', got %q", resp.Database)
	}
}

func TestListRooms(t *testing.T) {
	eng := &fakeEngineReader{rooms: []engine.RoomSummary{
		{ID: "room-1", MapID: 3, State: engine.RoomStateWaiting, Players: 2},
	}}
	server := NewServer(eng, nil, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/rooms")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp roomsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Rooms) != 1 || resp.Rooms[0].ID != "room-1" {
		t.Errorf("Unexpected rooms payload: %+v", resp.Rooms)
	}
}

func TestListRooms_EmptyIsArrayNotNull(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, nil, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/rooms")
	if body := rec.Body.String(); !json.Valid([]byte(body)) || body == "" {
		t.Fatalf("Invalid body: %q", body)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(raw["rooms"]) == "null" {
		t.Error("Expected rooms to encode as [] not null")
	}
}

func TestListResults(t *testing.T) {
	store := &fakeResultStore{results: []*types.RaceResult{
		{ID: "r1", RoomID: "room-1", MapID: 2, PlayerID: "alice", Rank: 1, DurationMS: 30000, RecordedAt: time.Now()},
	}}
	server := NewServer(&fakeEngineReader{}, store, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/results?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if store.lastLimit != 5 {
		t.Errorf("Expected limit 5 passed through, got %d", store.lastLimit)
	}
}

func TestListResults_LimitValidation(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, &fakeResultStore{}, nil)

	for _, limit := range []string{"0", "-1", "1001", "abc"} {
		rec := doRequest(t, server, http.MethodGet, "/api/results?limit="+limit)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", limit, rec.Code)
		}
	}
}

func TestListResults_DisabledWithoutStore(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, nil, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/results")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestListResults_StoreError(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, &fakeResultStore{listErr: errors.New("boom")}, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/results")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, nil, []string{"game.example"})

	req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
	req.Header.Set("Origin", "https://game.example")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://game.example" {
		t.Errorf("Expected origin echoed, got %q", got)
	}

	// Disallowed origins get no allow header but the request still serves.
	req = httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow header for disallowed origin, got %q", got)
	}
}

func TestNonGETRejected(t *testing.T) {
	server := NewServer(&fakeEngineReader{}, nil, nil)

	rec := doRequest(t, server, http.MethodPost, "/api/rooms")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
}
