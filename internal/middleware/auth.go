// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/escolalink/messaging-platform/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ProfileKey is the context key for the authenticated user profile.
	ProfileKey ContextKey = "profile"
)

// Claims are the JWT claims issued by the identity provider. The subject
// is the user id; the portal attributes ride alongside.
type Claims struct {
	jwt.RegisteredClaims
	Name         string     `json:"name,omitempty"`
	Role         model.Role `json:"role"`
	CourseID     int64      `json:"course_id,omitempty"`
	ClassSection string     `json:"class_section,omitempty"`
}

// Auth creates JWT authentication middleware. The token is taken from the
// Authorization header, or from the token query parameter for WebSocket
// upgrades, where browsers cannot set headers.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, `{"error":"missing credentials"}`, http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			profile := model.Profile{
				ID:           claims.Subject,
				Name:         claims.Name,
				Role:         claims.Role,
				CourseID:     claims.CourseID,
				ClassSection: claims.ClassSection,
			}
			ctx := context.WithValue(r.Context(), ProfileKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// GetProfile gets the authenticated user profile from context.
func GetProfile(ctx context.Context) model.Profile {
	if v := ctx.Value(ProfileKey); v != nil {
		return v.(model.Profile)
	}
	return model.Profile{}
}

// GetUserID gets the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	return GetProfile(ctx).ID
}

// RequireRole creates middleware that restricts an endpoint to the given
// roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetProfile(r.Context()).Role
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"insufficient permissions"}`, http.StatusForbidden)
		})
	}
}
