package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anekolabs/whatsapp-admin-api/pkg/env"
)

// JWTSecretKey for signing panel tokens
// REQUIRED: Application will panic if not set
var JWTSecretKey string

// PanelTokenTTL bounds how long an issued panel token stays valid.
var PanelTokenTTL time.Duration

func init() {
	// JWT_SECRET_KEY is REQUIRED (min 32 chars) - app will panic if not configured
	JWTSecretKey = env.MustGetEnvString("JWT_SECRET_KEY")
	PanelTokenTTL = env.GetEnvDurationOrDefault("PANEL_TOKEN_TTL", 12*time.Hour)
}

// PanelTokenClaims represents the claims in a panel operator JWT
type PanelTokenClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// GeneratePanelToken creates a short-lived JWT for a panel operator.
func GeneratePanelToken(operator string) (string, error) {
	if JWTSecretKey == "" {
		return "", errors.New("JWT_SECRET_KEY not configured")
	}

	now := time.Now()
	claims := PanelTokenClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(PanelTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(JWTSecretKey))
}

// ValidatePanelToken validates a panel JWT and returns the claims
func ValidatePanelToken(tokenString string) (*PanelTokenClaims, error) {
	if JWTSecretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &PanelTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(JWTSecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*PanelTokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}
