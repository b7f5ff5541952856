package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

func requestAs(role domain.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	user := &domain.User{ID: uuid.New(), Role: role, Active: true}
	return req.WithContext(context.WithValue(req.Context(), UserKey, user))
}

func TestRoleGates(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		gate       func(http.Handler) http.Handler
		role       domain.Role
		wantStatus int
	}{
		{name: "owner passes owner gate", gate: RequireOwner, role: domain.RoleOwner, wantStatus: http.StatusOK},
		{name: "student blocked by owner gate", gate: RequireOwner, role: domain.RoleStudent, wantStatus: http.StatusForbidden},
		{name: "admin blocked by owner gate", gate: RequireOwner, role: domain.RoleAdmin, wantStatus: http.StatusForbidden},
		{name: "student passes student gate", gate: RequireStudent, role: domain.RoleStudent, wantStatus: http.StatusOK},
		{name: "owner blocked by student gate", gate: RequireStudent, role: domain.RoleOwner, wantStatus: http.StatusForbidden},
		{name: "admin passes admin gate", gate: RequireAdmin, role: domain.RoleAdmin, wantStatus: http.StatusOK},
		{name: "owner blocked by admin gate", gate: RequireAdmin, role: domain.RoleOwner, wantStatus: http.StatusForbidden},
		{name: "student blocked by admin gate", gate: RequireAdmin, role: domain.RoleStudent, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.gate(okHandler).ServeHTTP(rec, requestAs(tt.role))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRoleGates_NoPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a principal")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gated", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
