package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// SessionExpiration is the default lifetime of a session token.
	SessionExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "roomlink"
)

// GenerateToken signs a session token for username bound to sessionID.
func GenerateToken(username, sessionID, secretKey string, issuedAt time.Time, duration time.Duration) (string, error) {
	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			ExpiresAt: issuedAt.Add(duration).Unix(),
			IssuedAt:  issuedAt.Unix(),
			Issuer:    TokenIssuer,
			Subject:   username,
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the token string using secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	if claims.Issuer != TokenIssuer || claims.Username == "" || claims.Id == "" {
		return nil, errors.New("token is missing required claims")
	}

	return claims, nil
}
