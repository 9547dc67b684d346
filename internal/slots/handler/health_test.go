package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	apperrors "hotelops/pkg/errors"
	"hotelops/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		pingErr  error
		wantCode int
	}{
		{"health ignores storage", "/health", errors.New("down"), http.StatusOK},
		{"ready with storage up", "/ready", nil, http.StatusOK},
		{"ready with storage down", "/ready", errors.New("server selection timeout"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			h := NewHealthHandler(pingFunc(func(ctx context.Context) error { return tt.pingErr }), "memory", logger.Nop())
			h.RegisterRoutes(router)

			rec := do(t, router, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantCode == http.StatusServiceUnavailable {
				body := decodeError(t, rec)
				if body.Code != apperrors.CodeUnavailable || body.Details["storage"] != "memory" {
					t.Errorf("unexpected unavailable body %+v", body)
				}
				if strings.Contains(rec.Body.String(), "server selection timeout") {
					t.Error("ping failure details must not leak into the response")
				}
			}
		})
	}
}
