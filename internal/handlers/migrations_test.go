package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/grobertson/Rosey-Robot-sub001/internal/migration"
)

// unavailableSource fails discovery, so requests that get past decoding
// surface a 500 from the executor instead of touching any storage.
type unavailableSource struct{}

func (unavailableSource) Discover(context.Context, string) ([]migration.Migration, error) {
	return nil, fmt.Errorf("source unavailable")
}

func migrationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMigrationHandler(migration.NewExecutor(nil, unavailableSource{}, "test"))

	r := gin.New()
	r.POST("/v1/namespaces/:namespace/migrations/apply", h.Apply)
	r.POST("/v1/namespaces/:namespace/migrations/rollback", h.Rollback)
	return r
}

func TestApplyRequestDecoding(t *testing.T) {
	r := migrationRouter()
	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		// absent and empty bodies both mean "apply to latest" and reach
		// the executor, which fails on the unavailable source
		{"no body", "", 500, "internal_error"},
		{"empty object", `{}`, 500, "internal_error"},
		{"explicit latest", `{"target": "latest"}`, 500, "internal_error"},
		{"bad target", `{"target": "newest"}`, 400, "malformed_expression"},
		{"not json", `{nope`, 400, "malformed_expression"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, errResp := doPost(t, r, "/v1/namespaces/library/migrations/apply", tc.body)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if errResp.Error.Kind != tc.wantKind {
				t.Errorf("kind = %q, want %q", errResp.Error.Kind, tc.wantKind)
			}
		})
	}
}

func TestRollbackRequestDecoding(t *testing.T) {
	r := migrationRouter()
	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		// rollback always needs a numeric target; an empty body gets the
		// target error, not a decoding error
		{"no body", "", 400, "malformed_expression"},
		{"missing target", `{}`, 400, "malformed_expression"},
		{"symbolic target", `{"target": "latest"}`, 400, "malformed_expression"},
		{"numeric target", `{"target": "2"}`, 500, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, errResp := doPost(t, r, "/v1/namespaces/library/migrations/rollback", tc.body)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if errResp.Error.Kind != tc.wantKind {
				t.Errorf("kind = %q, want %q", errResp.Error.Kind, tc.wantKind)
			}
		})
	}
}
