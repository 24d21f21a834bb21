package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/noema/internal/config"
	"github.com/nidhogg/noema/internal/mind"
	"github.com/nidhogg/noema/internal/telemetry"
	"go.uber.org/zap"
)

// newTestHandler creates a Handler wired with an in-memory mind (no
// Postgres/Neo4j/Redis/Qdrant).
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	cfg := config.DefaultCognition()
	cfg.Seed = 1
	m := mind.New(cfg, telemetry.NewHub(logger), mind.Options{}, logger)
	go m.Run()
	t.Cleanup(m.Close)

	return NewHandler(m, logger).Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestSubmitEvent(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/events", map[string]interface{}{
		"owner_id": "owner-1",
		"payload":  map[string]string{"action": "feed", "food": "apple"},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result mind.EventResult
	decodeJSON(t, resp, &result)
	if len(result.Symbols) != 2 {
		t.Errorf("expected 2 symbols, got %v", result.Symbols)
	}
	if result.MemoryID == "" {
		t.Error("expected a memory id")
	}
	if !result.Learned {
		t.Error("first event should learn a new pattern")
	}

	// Validation — missing owner
	resp = postJSON(t, ts, "/api/events", map[string]string{"payload": "hi"})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for missing owner_id, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReportOutcomeUnknownLoop(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/outcome", map[string]interface{}{
		"owner_id": "owner-1",
		"loop_id":  "no-such-loop",
		"success":  true,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]bool
	decodeJSON(t, resp, &body)
	if body["applied"] {
		t.Error("unknown loop should not apply feedback")
	}

	// Validation — missing loop id
	resp = postJSON(t, ts, "/api/outcome", map[string]bool{"success": true})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for missing loop_id, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMemoriesRoundTrip(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts, "/api/events", map[string]interface{}{
			"owner_id": "owner-1",
			"payload":  map[string]string{"action": "play"},
		})
		resp.Body.Close()
	}

	// Recent
	resp := getJSON(t, ts, "/api/memories/recent?owner=owner-1&limit=10")
	if resp.StatusCode != 200 {
		t.Fatalf("recent: expected 200, got %d", resp.StatusCode)
	}
	var recent []map[string]interface{}
	decodeJSON(t, resp, &recent)
	if len(recent) != 3 {
		t.Errorf("expected 3 recent records, got %d", len(recent))
	}

	// Query by feature
	resp = postJSON(t, ts, "/api/memories/query", map[string]interface{}{
		"features": []string{"action:play"},
		"limit":    5,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("query: expected 200, got %d", resp.StatusCode)
	}
	var matched []map[string]interface{}
	decodeJSON(t, resp, &matched)
	if len(matched) != 3 {
		t.Errorf("expected 3 matched records, got %d", len(matched))
	}

	// Query for an unknown feature — empty array, not null
	resp = postJSON(t, ts, "/api/memories/query", map[string]interface{}{
		"features": []string{"nothing:here"},
	})
	var empty []map[string]interface{}
	decodeJSON(t, resp, &empty)
	if len(empty) != 0 {
		t.Errorf("expected 0 records, got %d", len(empty))
	}
}

func TestSelfDescription(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	// Unknown owner — 404
	resp := getJSON(t, ts, "/api/self/nobody")
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown owner, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/events", map[string]interface{}{
		"owner_id": "owner-1",
		"payload":  map[string]string{"action": "play"},
	})
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/self/owner-1")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var desc map[string]interface{}
	decodeJSON(t, resp, &desc)
	if desc["name"] == "" {
		t.Error("expected a creature name")
	}
}

func TestBehaviorsAndMetrics(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	// Five identical events crystallize one loop.
	for i := 0; i < 5; i++ {
		resp := postJSON(t, ts, "/api/events", map[string]interface{}{
			"owner_id": "owner-1",
			"payload":  map[string]string{"action": "feed"},
		})
		resp.Body.Close()
	}

	resp := getJSON(t, ts, "/api/behaviors")
	if resp.StatusCode != 200 {
		t.Fatalf("behaviors: expected 200, got %d", resp.StatusCode)
	}
	var loops []map[string]interface{}
	decodeJSON(t, resp, &loops)
	if len(loops) != 1 {
		t.Fatalf("expected 1 crystallized loop, got %d", len(loops))
	}

	resp = getJSON(t, ts, "/api/metrics")
	if resp.StatusCode != 200 {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	var metrics mind.Metrics
	decodeJSON(t, resp, &metrics)
	if metrics.Loops != 1 {
		t.Errorf("expected 1 loop in metrics, got %d", metrics.Loops)
	}
	if metrics.Symbols == 0 {
		t.Error("expected symbols to be counted")
	}
}

func TestCuriositySuggestion(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/events", map[string]interface{}{
		"owner_id": "owner-1",
		"payload":  map[string]string{"toy": "ball"},
	})
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/curiosity/suggestion")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["category"] != "toy" {
		t.Errorf("expected toy category, got %q", body["category"])
	}
}
