package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Identity headers set by the upstream gateway.
const (
	HeaderUserID        = "X-User-ID"
	HeaderUserRole      = "X-User-Role"
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

var errBadIdentity = errors.New("invalid identity headers")

// requestContext attaches request and correlation ids and echoes the
// request id back.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithRequestID(r.Context(), strings.TrimSpace(r.Header.Get(HeaderRequestID)))
		ctx = observability.WithCorrelationID(ctx, strings.TrimSpace(r.Header.Get(HeaderCorrelationID)))
		w.Header().Set(HeaderRequestID, observability.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMiddleware resolves the caller from the identity headers. A
// request without X-User-ID carries no session; handlers that mutate
// reject it through Session.Validate.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %s is not a UUID", errBadIdentity, HeaderUserID))
			return
		}
		role, err := sharedApplication.ParseRole(r.Header.Get(HeaderUserRole))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadIdentity, err))
			return
		}
		s := sharedApplication.Session{UserID: userID, Role: role}
		ctx := sharedApplication.WithSession(r.Context(), s)
		ctx = observability.WithUserID(ctx, userID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the caller's session, or the zero session.
func sessionFrom(r *http.Request) sharedApplication.Session {
	s, _ := sharedApplication.SessionFromContext(r.Context())
	return s
}

// instrument logs each request and records its count and latency.
func instrument(logger *slog.Logger, metrics observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			tags := []observability.Tag{
				observability.T("method", r.Method),
				observability.T("route", route),
				observability.T("status", strconv.Itoa(status)),
			}
			metrics.Counter(observability.MetricHTTPRequests, 1, tags...)
			metrics.Timing(observability.MetricHTTPDuration, elapsed, tags...)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				observability.RequestIDKey, observability.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"route", route,
				observability.StatusKey, status,
				observability.DurationKey, elapsed.Milliseconds(),
			)
		})
	}
}
