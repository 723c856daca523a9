package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"FragFM/core/auth"
	"FragFM/core/errs"
	"FragFM/logger"
	"FragFM/model"
)

const tokenCookie = "token"

type contextKey string

const (
	userIDKey   contextKey = "userID"
	usernameKey contextKey = "username"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

type userResponse struct {
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user"`
}

func (h *APIHandler) setTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	})
}

func (h *APIHandler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// RegisterHandler creates an administrator account.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if !h.opts.RegistrationEnabled {
		writeMessage(w, http.StatusForbidden, "registration is disabled")
		return
	}

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := &model.User{Username: req.Username, Name: req.Name, PasswordHash: hash, Active: true}
	id, err := h.users.CreateUser(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user.ID = id

	logger.Info("[Register] user created", logger.Int64("userId", id), logger.String("username", user.Username))
	writeJSON(w, http.StatusCreated, userResponse{Message: "user registered", User: user})
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetActiveUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			logger.Warn("[Login] unknown or inactive user", logger.String("username", req.Username))
			writeMessage(w, http.StatusUnauthorized, "invalid credentials or inactive user")
			return
		}
		writeError(w, r, err)
		return
	}
	if !h.passwords.Check(req.Password, user.PasswordHash) {
		logger.Warn("[Login] wrong password", logger.String("username", req.Username))
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.users.TouchLastLogin(r.Context(), user.ID); err != nil {
		// not worth failing the login over
		logger.Warn("[Login] failed to record last login", logger.Int64("userId", user.ID), logger.ErrorField(err))
	}
	token, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		writeError(w, r, errs.E(errs.Internal, "server.Login", "", err))
		return
	}
	h.setTokenCookie(w, token, h.tokens.TTL())

	logger.Info("[Login] success", logger.Int64("userId", user.ID), logger.String("username", user.Username))
	writeJSON(w, http.StatusOK, userResponse{Message: "logged in", User: user})
}

// LogoutHandler expires the session cookie.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.clearTokenCookie(w)
	writeMessage(w, http.StatusOK, "logged out")
}

// MeHandler returns the authenticated user.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// tokenFromRequest prefers the session cookie and falls back to a bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := h.tokens.ParseToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				h.clearTokenCookie(w)
				writeMessage(w, http.StatusUnauthorized, "session expired, please log in again")
				return
			}
			logger.Warn("[Auth] invalid token", logger.String("path", r.URL.Path), logger.ErrorField(err))
			writeMessage(w, http.StatusForbidden, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, errs.E(errs.Unauthorized, "server.GetUserIDFromContext", "authentication required", nil)
	}
	return userID, nil
}
