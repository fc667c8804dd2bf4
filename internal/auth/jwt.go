package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/enum"
)

const AdminTokenTTL = 15 * time.Minute

// Claims identify either a shopper bound to one page session or an admin.
type Claims struct {
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Role      string    `json:"role"`
	jwt.RegisteredClaims
}

// GenerateSessionToken issues the token a page uses for every call on its
// session. It expires together with the session.
func GenerateSessionToken(secret string, sessionID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		Role:      enum.RoleShopper,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateAdminToken(secret, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: enum.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(AdminTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// CanAccessSession reports whether the claims may act on sessionID.
func (c *Claims) CanAccessSession(sessionID uuid.UUID) bool {
	return c.Role == enum.RoleAdmin || (c.Role == enum.RoleShopper && c.SessionID == sessionID)
}
