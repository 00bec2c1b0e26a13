package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/searchforge/creators_proxy/internal/controller"
)

type staticStatus controller.Status

func (s staticStatus) Status() controller.Status {
	return controller.Status(s)
}

func serve(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestStatusIsFixed(t *testing.T) {
	code, body := serve(t, http.HandlerFunc(Status))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzColdCacheIsReady(t *testing.T) {
	code, body := serve(t, Readyz(staticStatus{}))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["cache_loaded"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzFailedColdFetchIsUnavailable(t *testing.T) {
	code, body := serve(t, Readyz(staticStatus{LastError: errors.New("boom"), ErrorAt: time.Now()}))
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["last_error"] != "boom" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzLoadedCacheStaysReadyAfterError(t *testing.T) {
	code, body := serve(t, Readyz(staticStatus{
		Loaded:    true,
		Records:   12,
		FetchedAt: time.Now(),
		LastError: errors.New("refresh failed"),
		ErrorAt:   time.Now(),
	}))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["records"] != float64(12) {
		t.Fatalf("unexpected body %v", body)
	}
}
