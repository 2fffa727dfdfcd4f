package server

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// AdminRole may manage documents and toggle maintenance.
const AdminRole = "admin"

// Identity headers. Authentication happens upstream; the gateway forwards
// who the caller is.
const (
	headerUserID   = "X-User-ID"
	headerTenantID = "X-Tenant-ID"
	headerRoles    = "X-User-Roles"
)

type userKey struct{}

// userContext reads the caller identity headers into the request context.
func userContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := models.UserContext{
			ID:       strings.TrimSpace(r.Header.Get(headerUserID)),
			TenantID: strings.TrimSpace(r.Header.Get(headerTenantID)),
			Roles:    parseRoles(r.Header.Get(headerRoles)),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func parseRoles(header string) []string {
	var roles []string
	for _, role := range strings.Split(header, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

func userFrom(ctx context.Context) models.UserContext {
	user, _ := ctx.Value(userKey{}).(models.UserContext)
	return user
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(userFrom(r.Context()).Roles, AdminRole) {
			respondError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		defer func() {
			s.logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
