package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/sessionauth/internal/domain"
	"github.com/utafrali/sessionauth/internal/service"
	"github.com/utafrali/sessionauth/internal/transport"
	"github.com/utafrali/sessionauth/pkg/httputil"
	"github.com/utafrali/sessionauth/pkg/middleware"
	"github.com/utafrali/sessionauth/pkg/validator"
)

// Success messages returned by the auth endpoints.
const (
	MsgSignedUp  = "User created successfully"
	MsgLoggedIn  = "Logged in successfully"
	MsgLoggedOut = "Logged out successfully"
	MsgRefreshed = "Token refreshed successfully"
	MsgServerErr = "Server error"
)

// AuthHandler handles HTTP requests for session endpoints.
type AuthHandler struct {
	service *service.SessionService
	cookies *transport.Cookies
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.SessionService, cookies *transport.Cookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// --- Response types ---

// UserResponse wraps the public user fields with an optional message.
type UserResponse struct {
	User    domain.PublicUser `json:"user"`
	Message string            `json:"message,omitempty"`
}

// --- Handlers ---

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, pair, err := h.service.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.Attach(w, pair)
	httputil.WriteJSON(w, http.StatusCreated, UserResponse{User: user.Public(), Message: MsgSignedUp})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, pair, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.Attach(w, pair)
	httputil.WriteJSON(w, http.StatusOK, UserResponse{User: user.Public(), Message: MsgLoggedIn})
}

// Logout handles POST /api/auth/logout. Cookies are cleared only once the
// stored session is gone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), h.cookies.RefreshToken(r)); err != nil {
		httputil.WriteServerError(w, r, MsgServerErr, err, h.logger)
		return
	}

	h.cookies.Clear(w)
	httputil.WriteMessage(w, http.StatusOK, MsgLoggedOut)
}

// RefreshToken handles POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	pair, err := h.service.Refresh(r.Context(), h.cookies.RefreshToken(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.Attach(w, pair)
	httputil.WriteMessage(w, http.StatusOK, MsgRefreshed)
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UserResponse{User: user.Public()})
}
