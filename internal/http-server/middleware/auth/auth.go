// Package auth authenticates requests carrying a bearer JWT issued by the
// mini-program login flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v4"

	"coach-service/pkg/response"
	"coach-service/pkg/sl"
)

type ctxKey struct{}

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSubject    = errors.New("token carries no openid")
)

// PrincipalFrom returns the openid stored by the middleware, or "".
func PrincipalFrom(ctx context.Context) string {
	p, _ := ctx.Value(ctxKey{}).(string)
	return p
}

// WithPrincipal stores the caller's openid in ctx.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, ctxKey{}, principal)
}

// New rejects requests without a valid HS256 token and stores the caller's
// openid (falling back to sub) in the request context.
func New(log *slog.Logger, secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(
			slog.String("component", "middleware/auth"),
		)

		log.Info("auth middleware enabled")

		fn := func(w http.ResponseWriter, r *http.Request) {
			principal, err := Parse(secret, r.Header.Get("Authorization"))
			if err != nil {
				log.Info("unauthenticated request",
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "invalid or missing token"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		}

		return http.HandlerFunc(fn)
	}
}

// Parse validates an Authorization header value and returns the principal.
func Parse(secret, header string) (string, error) {
	const op = "auth.Parse"

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%s: %w", op, errMissingToken)
	}

	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	for _, key := range []string{"openid", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, errNoSubject)
}
