package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

const (
	subjectKey = "sub"
	roleKey    = "role"
	tokenIdKey = "jti"
)

type JwtManager struct {
	auth *jwtauth.JWTAuth
	exp  time.Duration
}

func NewJwtManager(secret []byte, exp time.Duration) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil), exp: exp}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return jwtauth.Authenticator(m.auth)
}

func (m *JwtManager) CreateUserJwt(user schema.User) (string, error) {
	claims := map[string]interface{}{
		subjectKey: user.Username,
		roleKey:    string(user.Role),
		tokenIdKey: uuid.NewString(),
		"exp":      time.Now().Add(m.exp),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating jwt", "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

func ValueFromContext(r *http.Request, key string) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", fmt.Errorf("error retrieving auth claims: %w", err)
	}

	valueUncasted, ok := claims[key]
	if !ok {
		return "", fmt.Errorf("invalid token: unable to locate key %v in claims", key)
	}

	value, ok := valueUncasted.(string)
	if !ok {
		return "", fmt.Errorf("invalid token: value for key %v has invalid type", key)
	}

	return value, nil
}

func RoleFromContext(r *http.Request) (schema.Role, error) {
	role, err := ValueFromContext(r, roleKey)
	if err != nil {
		return "", err
	}
	return schema.Role(role), nil
}

func UserFromContext(r *http.Request) (schema.User, error) {
	userUntyped := r.Context().Value(UserRequestContextKey)
	if userUntyped == nil {
		return schema.User{}, fmt.Errorf("user field not found in request context")
	}
	user, ok := userUntyped.(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("invalid value for user field")
	}
	return user, nil
}

type tokenInfo struct {
	id     string
	expiry time.Time
}

func tokenFromContext(r *http.Request) (tokenInfo, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return tokenInfo{}, fmt.Errorf("error retrieving access token: %w", err)
	}
	if token == nil || token.JwtID() == "" {
		return tokenInfo{}, fmt.Errorf("invalid token: missing token id")
	}
	return tokenInfo{id: token.JwtID(), expiry: token.Expiration()}, nil
}
