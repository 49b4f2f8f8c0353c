package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// Tokens gate the administrative surface; the webhook and read paths
// authenticate differently (HMAC signature, none).
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
