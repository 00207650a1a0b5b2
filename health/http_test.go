package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		wantCode   int
		wantReady  string
		wantStatus string
	}{
		{"healthy", StatusHealthy, http.StatusOK, "OK", "healthy"},
		{"degraded", StatusDegraded, http.StatusOK, "DEGRADED", "degraded"},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable, "UNHEALTHY", "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(0)
			agg.Register(fixed("storage", tt.status))
			mux := http.NewServeMux()
			RegisterHandlers(mux, agg)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("/healthz code = %d", rec.Code)
			}

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.wantCode || strings.TrimSpace(rec.Body.String()) != tt.wantReady {
				t.Errorf("/readyz = %d %q", rec.Code, rec.Body.String())
			}

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("/health code = %d", rec.Code)
			}
			var rep Report
			if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rep.Status != tt.wantStatus || rep.Checks["storage"].Status != tt.wantStatus {
				t.Errorf("report = %+v", rep)
			}
		})
	}
}
