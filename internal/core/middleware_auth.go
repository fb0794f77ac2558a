package core

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"zonetime/internal/types"
)

// adminKeyHeader carries the admin key when Authorization is not used.
const adminKeyHeader = "X-Admin-Key"

// RequireAdmin guards routes that change state (manual refresh, zone edits).
// The key comes from "Authorization: Bearer <key>" or X-Admin-Key and is
// compared against the configured bcrypt hash. With no hash configured every
// request is rejected.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	var hash []byte
	if s.Config != nil {
		hash = []byte(s.Config.Security.AdminAPIKeyHash.Unmask())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(hash) == 0 {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "admin endpoints are disabled")
			return
		}

		key := extractBearerToken(r.Header.Get("Authorization"))
		if key == "" {
			key = strings.TrimSpace(r.Header.Get(adminKeyHeader))
		}
		if key == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "admin key is required")
			return
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
			s.Logger.WarnContext(r.Context(), "admin authentication failed",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "invalid admin key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token of a "Bearer" Authorization value,
// or "" for any other scheme.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	// The scheme is case-insensitive (RFC 7235).
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
