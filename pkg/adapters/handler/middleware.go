package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/config"
)

const (
	authCookieName  = "auth_token"
	requestIDHeader = "X-Request-ID"
)

type contextKey int

const (
	actorKey contextKey = iota
	requestIDKey
)

// HTTPObserver receives one observation per served request
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

type Middleware struct {
	jwtSecret []byte
	logger    *zap.Logger
	observer  HTTPObserver
}

func NewMiddleware(cfg *config.Config, logger *zap.Logger, observer HTTPObserver) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		jwtSecret: []byte(cfg.JWTSecret),
		logger:    logger,
		observer:  observer,
	}
}

// AuthMiddleware verifies the HS256 JWT from the Authorization header, falling back to the auth_token cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(authCookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			m.logger.Debug("rejected token",
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID propagates the caller's X-Request-ID or assigns a new one
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// Observe logs and measures every request. It must wrap the mux directly so the
// matched route pattern is visible after dispatch.
func (m *Middleware) Observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if m.observer != nil {
			m.observer.ObserveHTTP(r.Method, route, rec.status, elapsed)
		}
		m.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", RequestIDFromContext(r.Context())))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ActorFromContext returns the token subject set by AuthMiddleware
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
