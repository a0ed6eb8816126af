package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{"", "  "})
	if auth.Enabled() {
		t.Error("Expected auth to be disabled when only blank keys are configured")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Disabled auth: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPIKeyAuth_Keys(t *testing.T) {
	handler := middleware.NewAPIKeyAuth([]string{"test-key-1", "test-key-2"}).Middleware(okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{"bearer", "/api/v1/agents", "Authorization", "Bearer test-key-1", http.StatusOK},
		{"x-api-key", "/api/v1/agents", "X-API-Key", "test-key-2", http.StatusOK},
		{"wrong key", "/api/v1/agents", "Authorization", "Bearer wrong-key", http.StatusUnauthorized},
		{"missing key", "/api/v1/stacks", "", "", http.StatusUnauthorized},
		{"basic scheme ignored", "/api/v1/agents", "Authorization", "Basic test-key-1", http.StatusUnauthorized},
		{"health is public", "/health", "", "", http.StatusOK},
		{"version is public", "/version", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}
