package util

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type (
	JWTClaims struct {
		UserID   uint   `json:"ui"`
		Username string `json:"un"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID   uint   `json:"userID"`
		Username string `json:"username"`
	}
)

// TokenManager signs and verifies the access tokens issued by the auth
// backend. This service only verifies; CreateToken exists for tests and
// local tooling.
type TokenManager struct {
	secretKey      string
	accessTokenTTL time.Duration
}

func NewTokenManager(secretKey string) *TokenManager {
	return &TokenManager{
		secretKey:      secretKey,
		accessTokenTTL: 24 * time.Hour,
	}
}

func (tm *TokenManager) CreateToken(msg *JWTMessage) (string, error) {
	claims := &JWTClaims{
		UserID:   msg.UserID,
		Username: msg.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.accessTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secretKey))
}

func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(tm.secretKey), nil
	})
	return JWTMessage{
		UserID:   claims.UserID,
		Username: claims.Username,
	}, err
}
