package middleware

import (
	"net/http"

	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/pkg/domain"
)

// RequireOwner gates a route to business owner accounts. Must be mounted
// after Auth.
func RequireOwner(next http.Handler) http.Handler {
	return requireRole(next, domain.RoleOwner, "owner account required")
}

// RequireStudent gates a route to student accounts.
func RequireStudent(next http.Handler) http.Handler {
	return requireRole(next, domain.RoleStudent, "student account required")
}

// RequireAdmin gates a route to administrator accounts.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, domain.RoleAdmin, "administrator access required")
}

func requireRole(next http.Handler, role domain.Role, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "missing authorization")
			return
		}
		if user.Role != role {
			httputil.Error(w, http.StatusForbidden, message)
			return
		}
		next.ServeHTTP(w, r)
	})
}
