package auth

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
)

// RoleOnly admits requests whose token carries one of the given roles. It must
// run after AuthMiddleware.
func RoleOnly(roles ...schema.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			role, err := RoleFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if !slices.Contains(roles, role) {
				http.Error(w, fmt.Sprintf("role '%v' is not allowed to access this endpoint", role), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// SysadminOnly rejects non sysadmin users with 401, user management treats a
// missing privilege as an authentication failure.
func SysadminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsSysadmin {
				http.Error(w, fmt.Sprintf("user %v is not a sysadmin", user.Username), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
