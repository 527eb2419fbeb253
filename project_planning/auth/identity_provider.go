package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials   = errors.New("bad username or password")
	ErrGeneratingJwt        = errors.New("error generating jwt")
	ErrEmailAlreadyInUse    = errors.New("email is already in use")
	ErrUsernameAlreadyInUse = errors.New("username is already in use")
	ErrInvalidRole          = errors.New("invalid role")
	ErrTokenRevoked         = errors.New("token has been revoked")
)

type LoginResult struct {
	User        schema.User
	AccessToken string
}

type NewUser struct {
	Username   string
	Email      string
	Password   string
	Role       schema.Role
	IsSysadmin bool
}

type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	Login(username, password string) (LoginResult, error)

	Logout(r *http.Request) error

	CreateUser(user NewUser) (schema.User, error)
}

// ParseRole matches either the stored value ("ong originante") or the constant
// name ("ONG_ORIGINANTE", case insensitive, spaces and underscores equivalent).
func ParseRole(value string) (schema.Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", " ")

	for _, role := range schema.AllRoles {
		if string(role) == normalized {
			return role, nil
		}
	}

	// Older clients sent the misspelled value.
	if normalized == "ong origante" {
		return schema.RoleOriginating, nil
	}

	return "", fmt.Errorf("%w: '%v'", ErrInvalidRole, value)
}

func addInitialAdminToDb(db *gorm.DB, user schema.User) error {
	err := db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "username = ? or email = ?", user.Username, user.Email)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected == 0 {
			result := txn.Create(&user)
			if result.Error != nil {
				slog.Error("sql error creating initial admin user", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return nil
}

type requestContextKey string

const (
	UserRequestContextKey requestContextKey = "user"
)
