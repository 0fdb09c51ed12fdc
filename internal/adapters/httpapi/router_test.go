package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"herdcore/internal/catalog"
	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("metrics recorder: %v", err)
	}
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithMetricsRecorder(rec))
	cat, err := catalog.LoadFile(filepath.Join("..", "..", "catalog", "testdata", "farm.yaml"))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if _, err := catalog.Seed(context.Background(), svc, cat, nil); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	opts.Gatherer = reg
	return New(svc, opts)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, Options{})
	rec := do(t, r, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected healthz response %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetAnimal(t *testing.T) {
	r := newTestRouter(t, Options{})
	rec := do(t, r, http.MethodPost, "/api/animals", `{"type":"female","specie_id":"pig","initial_location_id":"pen-a"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create animal: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		Data domain.Animal `json:"data"`
	}](t, rec)
	if created.Data.Number != "S-0001" || created.Data.FarmID != "farm1" {
		t.Fatalf("unexpected animal %+v", created.Data)
	}

	rec = do(t, r, http.MethodGet, "/api/animals/"+created.Data.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get animal: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Data struct {
			FemaleState string `json:"female_state"`
			LocationID  string `json:"location_id"`
			Present     bool   `json:"present"`
		} `json:"data"`
	}](t, rec)
	if got.Data.LocationID != "pen-a" || !got.Data.Present || got.Data.FemaleState != string(domain.FemaleProspective) {
		t.Fatalf("unexpected animal view %+v", got.Data)
	}

	rec = do(t, r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `herdcore_operations_total{operation="create_animal",status="success"} 1`) {
		t.Fatalf("expected create_animal counter in metrics, got %s", rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter(t, Options{})

	rec := do(t, r, http.MethodGet, "/api/animals/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Code != string(domain.CodeNotFound) {
		t.Fatalf("unexpected error body %+v", body)
	}

	rec = do(t, r, http.MethodPost, "/api/animals", `{"type":"group","specie_id":"pig","initial_location_id":"pen-a"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}
	if body := decode[errorBody](t, rec); body.Code != string(domain.CodeInvalidConfiguration) {
		t.Fatalf("unexpected error body %+v", body)
	}

	rec = do(t, r, http.MethodPost, "/api/groups", `{"specie_id":"pig","initial_location_id":"pen-a","initial_quantity":0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty group, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/events", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	for _, path := range []string{
		"/api/events/nope/validate",
		"/api/events/nope/cancel",
		"/api/feed-inventories/nope/validate",
		"/api/event-orders/nope/confirm",
	} {
		if rec := do(t, r, http.MethodPost, path, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, Options{RateLimit: 0.001, RateBurst: 1})
	if rec := do(t, r, http.MethodGet, "/api/animals/x", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := do(t, r, http.MethodGet, "/api/animals/x", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz must not be limited, got %d", rec.Code)
	}
}
