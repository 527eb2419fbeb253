package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

type BasicIdentityProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
	denylist   TokenDenylist
	auditLog   AuditLogger
}

type BasicProviderArgs struct {
	Secret        []byte
	TokenExpiry   time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func NewBasicIdentityProvider(db *gorm.DB, denylist TokenDenylist, auditLog AuditLogger, args BasicProviderArgs) (*BasicIdentityProvider, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(args.AdminPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error encrypting admin password: %w", err)
	}

	admin := schema.User{
		Id:         uuid.New(),
		Username:   args.AdminUsername,
		Email:      args.AdminEmail,
		Password:   hashedPwd,
		Role:       schema.RoleUndefined,
		IsSysadmin: true,
		IsActive:   true,
	}
	if err := addInitialAdminToDb(db, admin); err != nil {
		return nil, fmt.Errorf("error adding inital admin to db: %w", err)
	}

	expiry := args.TokenExpiry
	if expiry == 0 {
		expiry = time.Hour
	}

	return &BasicIdentityProvider{
		jwtManager: NewJwtManager(args.Secret, expiry),
		db:         db,
		denylist:   denylist,
		auditLog:   auditLog,
	}, nil
}

func (auth *BasicIdentityProvider) rejectRevoked() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			revoked, err := auth.denylist.IsRevoked(r.Context(), token.id)
			if err != nil {
				slog.Error("error checking token denylist", "error", err)
				http.Error(w, "unable to verify access token", http.StatusInternalServerError)
				return
			}
			if revoked {
				http.Error(w, ErrTokenRevoked.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *BasicIdentityProvider) addUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			username, err := ValueFromContext(r, subjectKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			user, err := schema.GetUserByUsername(username, auth.db)
			if err != nil {
				if errors.Is(err, schema.ErrUserNotFound) {
					http.Error(w, fmt.Sprintf("user %v no longer exists", username), http.StatusUnauthorized)
					return
				}
				http.Error(w, fmt.Sprintf("unable to find user %v: %v", username, err), http.StatusInternalServerError)
				return
			}

			if !user.CanLogin() {
				http.Error(w, fmt.Sprintf("user %v is inactive", username), http.StatusUnauthorized)
				return
			}

			reqCtx := context.WithValue(r.Context(), UserRequestContextKey, user)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *BasicIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{
		auth.jwtManager.Verifier(),
		auth.jwtManager.Authenticator(),
		auth.rejectRevoked(),
		auth.addUserToContext(),
		auth.auditLog.Middleware,
	}
}

func (auth *BasicIdentityProvider) Login(username, password string) (LoginResult, error) {
	user, err := schema.GetUserByUsername(username, auth.db)
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !user.CanLogin() {
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := auth.jwtManager.CreateUserJwt(user)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	return LoginResult{User: user, AccessToken: token}, nil
}

func (auth *BasicIdentityProvider) Logout(r *http.Request) error {
	token, err := tokenFromContext(r)
	if err != nil {
		return err
	}

	if err := auth.denylist.Revoke(r.Context(), token.id, token.expiry); err != nil {
		slog.Error("error revoking token", "error", err)
		return fmt.Errorf("error revoking access token: %w", err)
	}
	return nil
}

func (auth *BasicIdentityProvider) CreateUser(args NewUser) (schema.User, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(args.Password), bcryptCost)
	if err != nil {
		return schema.User{}, fmt.Errorf("error encrypting password: %w", err)
	}

	newUser := schema.User{
		Id:         uuid.New(),
		Username:   args.Username,
		Email:      args.Email,
		Password:   hashedPwd,
		Role:       args.Role,
		IsSysadmin: args.IsSysadmin,
		IsActive:   true,
	}

	err = auth.db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "username = ? or email = ?", args.Username, args.Email)
		if result.Error != nil {
			slog.Error("sql error checking for existing username/email", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			if existingUser.Username == args.Username {
				return ErrUsernameAlreadyInUse
			}
			return ErrEmailAlreadyInUse
		}

		result = txn.Create(&newUser)
		if result.Error != nil {
			slog.Error("sql error creating new user entry", "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})

	if err != nil {
		return schema.User{}, fmt.Errorf("error creating new user: %w", err)
	}

	return newUser, nil
}
