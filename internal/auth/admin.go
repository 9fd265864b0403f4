package auth

import (
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/golang-jwt/jwt/v5"
)

// ValidateAdminKey validates the X-API-Key header of admin endpoints. The
// key is an HS256 JWT signed with the shared admin secret; any structurally
// valid, correctly signed and unexpired token is accepted.
func ValidateAdminKey(tokenString, secret string) error {
	if secret == "" {
		return fault.New(fault.KindFatal, "admin secret not configured")
	}
	if tokenString == "" {
		return fault.New(fault.KindAuth, "missing admin key")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return fault.New(fault.KindAuth, "invalid admin key")
	}
	return nil
}
