package stub

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// mintToken issues an HS256 bearer token for userID.
func mintToken(secret []byte, userID string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "[mintToken] signing")
	}
	return signed, nil
}

// parseToken validates raw and returns the user ID it was minted for.
func parseToken(secret []byte, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Wrap(err, "[parseToken] parsing")
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("[parseToken] token invalid")
	}
	return claims.Subject, nil
}
