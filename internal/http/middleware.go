package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/recetas-api/internal/domain"
	"github.com/Clark-Hu/recetas-api/internal/metrics"
	"github.com/Clark-Hu/recetas-api/internal/repository"
)

type ctxKey int

const userCtxKey ctxKey = iota

func withUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// currentUser returns the authenticated caller, if any.
func currentUser(r *http.Request) (domain.User, bool) {
	user, ok := r.Context().Value(userCtxKey).(domain.User)
	return user, ok
}

func (s *Server) requestLogger(r *http.Request) *zerolog.Logger {
	logger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
	return &logger
}

// logRequests emits one structured entry per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := s.logger.Info()
		if status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// recordMetrics feeds request counts and latency to Prometheus.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		wrapper := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		metrics.RecordHTTPRequest(r.Method, routePattern(r), wrapper.statusCode, time.Since(start))
	})
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <jwt>" header.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

type authFailure struct {
	status  int
	code    string
	message string
}

var (
	errUnauthenticated = &authFailure{http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information"}
	errDeactivated     = &authFailure{http.StatusForbidden, "FORBIDDEN", "Account is deactivated"}
)

func (f *authFailure) Error() string { return f.message }

// authenticate resolves the caller from the bearer token. The user row is
// always reloaded so role and state changes apply immediately.
func (s *Server) authenticate(r *http.Request) (domain.User, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return domain.User{}, errUnauthenticated
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return domain.User{}, errUnauthenticated
	}
	user, err := s.repo.Users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, errUnauthenticated
		}
		return domain.User{}, err
	}
	if user.State == domain.AccountDeactivated {
		return domain.User{}, errDeactivated
	}
	return user, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			var failure *authFailure
			if errors.As(err, &failure) {
				s.respondError(w, failure.status, failure.code, failure.message)
				return
			}
			s.respondStoreError(w, r, err, "authenticate")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// optionalAuth attaches the caller when a valid token is present and
// otherwise continues anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			if user, err := s.authenticate(r); err == nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r)
		if !ok || !user.IsAdmin() {
			s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
