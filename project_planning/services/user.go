package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/utils"
	"github.com/Matgc04/dssd-2025/utils/logging"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/logout", s.Logout)
		r.Get("/me", s.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.SysadminOnly())

		r.Post("/users", s.CreateUser)
		r.Get("/users", s.List)
		r.Delete("/users/{user_id}", s.DeleteUser)
		r.Post("/users/{user_id}/restore", s.RestoreUser)
	})

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Username == "" || params.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	login, err := s.userAuth.Login(params.Username, params.Password)
	if err != nil {
		loginMetric.WithLabelValues("failure").Inc()
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrInvalidCredentials) {
			responseCode = http.StatusUnauthorized
		}
		slog.Info("login failed", "code", logging.AUTH_LOGIN, "username", params.Username, "error", err)
		http.Error(w, err.Error(), responseCode)
		return
	}

	loginMetric.WithLabelValues("success").Inc()
	slog.Info("user logged in", "code", logging.AUTH_LOGIN, "username", login.User.Username, "role", login.User.Role)

	utils.WriteJsonResponse(w, loginResponse{AccessToken: login.AccessToken})
}

func (s *UserService) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.userAuth.Logout(r); err != nil {
		http.Error(w, fmt.Sprintf("logout failed: %v", err), http.StatusInternalServerError)
		return
	}

	if user, err := auth.UserFromContext(r); err == nil {
		slog.Info("user logged out", "code", logging.AUTH_LOGOUT, "username", user.Username)
	}

	utils.WriteSuccess(w)
}

func (s *UserService) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	utils.WriteJsonResponse(w, convertToUserInfo(user))
}

type createUserRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	IsSysadmin bool   `json:"is_sysadmin"`
}

type createUserResponse struct {
	Id         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Role       schema.Role `json:"role"`
	IsSysadmin bool        `json:"is_sysadmin"`
}

func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	var params createUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Username == "" || params.Email == "" || params.Password == "" || params.Role == "" {
		http.Error(w, "username, email, password and role are required", http.StatusBadRequest)
		return
	}

	role, err := auth.ParseRole(params.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.userAuth.CreateUser(auth.NewUser{
		Username:   params.Username,
		Email:      params.Email,
		Password:   params.Password,
		Role:       role,
		IsSysadmin: params.IsSysadmin,
	})
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrEmailAlreadyInUse), errors.Is(err, auth.ErrUsernameAlreadyInUse), errors.Is(err, gorm.ErrDuplicatedKey):
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	slog.Info("user created", "code", logging.AUTH_USERS, "username", user.Username, "role", user.Role)

	utils.WriteJsonResponseStatus(w, http.StatusCreated, createUserResponse{
		Id:         user.Id.String(),
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsSysadmin: user.IsSysadmin,
	})
}

type usersResponse struct {
	Users []userInfo `json:"users"`
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	query := s.db.Order("username ASC")
	if r.URL.Query().Get("includeDeleted") != "true" {
		query = query.Where("deleted_at IS NULL")
	}

	var users []schema.User
	if result := query.Find(&users); result.Error != nil {
		writeError(w, dbError("sql error listing users", result.Error))
		return
	}

	utils.WriteJsonResponse(w, usersResponse{Users: lo.Map(users, func(u schema.User, _ int) userInfo {
		return convertToUserInfo(u)
	})})
}

// setDeleted soft deletes or restores the user named in the url.
func (s *UserService) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	requester, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if deleted && requester.Id == userId {
		http.Error(w, "users cannot delete themselves", http.StatusBadRequest)
		return
	}

	var user schema.User
	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err = schema.GetUser(userId, txn)
		if err != nil {
			return lookupError(err)
		}

		if deleted {
			user.MarkDeleted(time.Now().UTC())
		} else {
			user.Restore()
		}

		result := txn.Model(&user).Select("deleted_at", "is_active").Updates(&user)
		if result.Error != nil {
			return dbError("sql error updating user", result.Error, "user_id", userId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("user updated", "code", logging.AUTH_USERS, "username", user.Username, "deleted", deleted)

	utils.WriteJsonResponse(w, convertToUserInfo(user))
}

func (s *UserService) DeleteUser(w http.ResponseWriter, r *http.Request) {
	s.setDeleted(w, r, true)
}

func (s *UserService) RestoreUser(w http.ResponseWriter, r *http.Request) {
	s.setDeleted(w, r, false)
}
