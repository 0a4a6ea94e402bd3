package auth

import (
	"fmt"
	"time"

	"tilemap-server/internal/shared/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the editor or pipeline client holding the token. Write
// access to maps requires the "editor" role.
type Claims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

const RoleEditor = "editor"

func getJWTSecret() (string, error) {
	secret := config.GlobalConfig.Auth.JWTSecret
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is required but not set")
	}
	return secret, nil
}

// GenerateToken issues a signed token for a client. Used by the token CLI
// and by tests; the server itself only validates.
func GenerateToken(clientID, role string) (string, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return "", fmt.Errorf("cannot generate token: %w", err)
	}

	claims := Claims{
		ClientID: clientID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.GlobalConfig.Auth.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   clientID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenString string) (*Claims, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return nil, fmt.Errorf("cannot validate token: %w", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
