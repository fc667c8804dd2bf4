package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiloshop/orderform/internal/auth"
	"github.com/kiloshop/orderform/internal/enum"
	"go.uber.org/zap"
)

// AdminCredentials is the single back-office account. An empty hash
// disables admin login.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// AuthHandler handles admin authentication.
type AuthHandler struct {
	admin     AdminCredentials
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(admin AdminCredentials, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{admin: admin, jwtSecret: jwtSecret, logger: logger}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// Login handles email + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(req.Email)), []byte(strings.ToLower(h.admin.Email))) == 1
	// bcrypt runs on every attempt, whether or not the email matched.
	passErr := auth.CheckPassword(h.admin.PasswordHash, req.Password)
	if !emailOK || passErr != nil {
		h.logger.Info("admin login rejected", zap.String("email", req.Email))
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	token, err := auth.GenerateAdminToken(h.jwtSecret, h.admin.Email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(auth.AdminTokenTTL),
		Role:        enum.RoleAdmin,
	})
}
