package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")
	ErrInvalidTokenClaims         = errors.New("invalid token claims")
	ErrEmptySubject               = errors.New("empty subject")
)

// ParseBearerToken extracts the token part of an "Authorization: Bearer <token>"
// header value.
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Split(strings.TrimSpace(authorizationHeader), " ")
	if len(parts) != 2 || parts[1] == "" || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidAuthorizationHeader
	}
	return parts[1], nil
}

// BareToken strips an optional "Bearer " scheme from a configured token.
func BareToken(raw string) string {
	if token, err := ParseBearerToken(raw); err == nil {
		return token
	}
	return strings.TrimSpace(raw)
}

// SubjectFromJWT returns the subject (sub) claim of tokenString without
// verifying its signature. The remote authority is the one that verifies the
// token; the client only needs the authenticated user identifier to scope its
// device secret.
//
// Example usage:
//
//	userID, err := utils.SubjectFromJWT(cfg.App.Token)
func SubjectFromJWT(tokenString string) (string, error) {
	claims, err := parseUnverified(BareToken(tokenString))
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "", ErrEmptySubject
	}
	return sub, nil
}

// JWTExpired reports whether the exp claim of tokenString is before now.
// Tokens without exp never expire.
func JWTExpired(tokenString string, now time.Time) (bool, error) {
	claims, err := parseUnverified(tokenString)
	if err != nil {
		return false, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, err
	}
	if exp == nil {
		return false, nil
	}
	return exp.Before(now), nil
}

func parseUnverified(tokenString string) (jwt.MapClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidTokenClaims
	}
	return claims, nil
}
