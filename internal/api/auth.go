package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ContextKeyClaims holds the validated token claims on the request context.
const ContextKeyClaims contextKey = "jwt_claims"

// JWTAuth validates HS256 bearer tokens signed with a shared secret.
type JWTAuth struct {
	secret []byte
	issuer string
	leeway time.Duration
	logger *slog.Logger
}

// NewJWTAuth creates the middleware. An empty issuer accepts any issuer.
func NewJWTAuth(secret, issuer string, logger *slog.Logger) (*JWTAuth, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	return &JWTAuth{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 5 * time.Second,
		logger: logger.With(slog.String("component", "api.auth")),
	}, nil
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing Authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid Authorization format: expected Bearer <token>")
				return
			}
			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				unauthorized(w, "empty bearer token")
				return
			}

			claims, err := j.Validate(tokenString)
			if err != nil {
				j.logger.Debug("token rejected", slog.String("error", err.Error()))
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Validate parses and verifies a token.
func (j *JWTAuth) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(j.leeway),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token not valid")
	}
	return claims, nil
}

// IssueToken signs an HS256 token for subject valid for ttl from now.
func IssueToken(secret, issuer, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret must not be empty")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// SubjectFromContext returns the token subject, or "" without auth.
func SubjectFromContext(ctx context.Context) string {
	if claims, ok := ctx.Value(ContextKeyClaims).(*jwt.RegisteredClaims); ok {
		return claims.Subject
	}
	return ""
}

// jwtAuthWithExclusions skips authentication for paths under excludePrefixes.
func jwtAuthWithExclusions(auth *JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := auth.Middleware()

	return func(next http.Handler) http.Handler {
		protected := jwtMiddleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}
