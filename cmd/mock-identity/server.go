package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/josh-kwaku/banking-service/internal/auth"
	"github.com/josh-kwaku/banking-service/internal/handler"
	"github.com/josh-kwaku/banking-service/internal/logging"
	"github.com/josh-kwaku/banking-service/internal/middleware"
)

var errNotAdmin = &handler.AppError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "Admin role required"}

type server struct {
	users       *userStore
	secret      string
	tokenExpiry time.Duration
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r credentialsRequest) Validate() []handler.FieldError {
	var errs []handler.FieldError
	if strings.TrimSpace(r.Username) == "" {
		errs = append(errs, handler.FieldError{Field: "username", Message: "required"})
	}
	if len(r.Password) < 6 {
		errs = append(errs, handler.FieldError{Field: "password", Message: "must be at least 6 characters"})
	}
	return errs
}

// userResponse is the shape banking-service reads from /user/me.
type userResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Blacklisted bool   `json:"blacklisted"`
}

func toUserResponse(u user) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Blacklisted: u.Blacklisted}
}

func (s *server) routes(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signup)
		r.Post("/auth/signin", s.signin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(s.secret))
			r.Get("/user/me", s.me)
			r.Put("/admin/blacklist/{id}", s.setBlacklisted)
		})
	})
	return r
}

func (s *server) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		handler.RespondValidationError(w, fields)
		return
	}

	u, err := s.users.create(req.Username, req.Password, false)
	if err != nil {
		if errors.Is(err, errUsernameTaken) {
			handler.RespondAppError(w, &handler.AppError{Status: http.StatusConflict, Code: "USERNAME_TAKEN", Message: "Username already taken"}, nil)
			return
		}
		logging.FromContext(r.Context()).Error("signup failed", "error", err)
		handler.RespondAppError(w, handler.ErrInternalError, nil)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *server) signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
		return
	}

	u, err := s.users.authenticate(req.Username, req.Password)
	if err != nil {
		handler.RespondAppError(w, handler.ErrUnauthorized, nil)
		return
	}

	token, err := auth.GenerateToken(u.ID, u.Username, s.secret, s.tokenExpiry)
	if err != nil {
		logging.FromContext(r.Context()).Error("token generation failed", "error", err)
		handler.RespondAppError(w, handler.ErrInternalError, nil)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"token": token, "type": "Bearer"})
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	handler.RespondJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *server) setBlacklisted(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	if !caller.Admin {
		handler.RespondAppError(w, errNotAdmin, nil)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		handler.RespondValidationError(w, []handler.FieldError{{Field: "id", Message: "must be an integer"}})
		return
	}

	var req struct {
		Blacklisted *bool `json:"blacklisted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Blacklisted == nil {
		handler.RespondValidationError(w, []handler.FieldError{{Field: "blacklisted", Message: "required boolean"}})
		return
	}

	u, err := s.users.setBlacklisted(id, *req.Blacklisted)
	if err != nil {
		handler.RespondAppError(w, handler.ErrResourceNotFound, nil)
		return
	}
	logging.FromContext(r.Context()).Info("blacklist updated", "user_id", u.ID, "blacklisted", u.Blacklisted, "by", caller.ID)
	handler.RespondJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *server) currentUser(w http.ResponseWriter, r *http.Request) (user, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		handler.RespondAppError(w, handler.ErrUnauthorized, nil)
		return user{}, false
	}
	u, err := s.users.get(id)
	if err != nil {
		handler.RespondAppError(w, handler.ErrUnauthorized, nil)
		return user{}, false
	}
	return u, true
}
