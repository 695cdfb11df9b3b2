// auth.go — Bearer token issue/verify and role gates.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the JWT body: the subject is the username.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type principal struct {
	Username string
	Role     string
}

type principalKey struct{}

func principalFrom(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

type authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (a *authenticator) issue(username, role string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (a *authenticator) verify(tokenString string) (principal, error) {
	if strings.TrimSpace(tokenString) == "" {
		return principal{}, errors.New("token cannot be empty")
	}

	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return principal{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if c.Subject == "" {
		return principal{}, errors.New("missing 'sub' claim")
	}
	return principal{Username: c.Subject, Role: c.Role}, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>",
// falling back to the "token" query parameter for websocket clients.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// requireAuth rejects requests without a valid token (401) or, when roles
// are given, whose role is not among them (403).
func (s *Server) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.auth.verify(bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, p.Role) {
			writeError(w, http.StatusForbidden, "forbidden: requires role "+strings.Join(roles, " or "))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	}
}
