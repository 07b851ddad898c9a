package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	AuthKey   contextKey = "auth"
)

// UserIDHeader carries the caller identity when token verification is disabled.
const UserIDHeader = "X-User-ID"

// AuthInfo contains authenticated user information
type AuthInfo struct {
	UserID string
	Email  string
}

// TokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Authenticator wraps handlers that need an authenticated user.
type Authenticator interface {
	RequireAuth(next http.Handler) http.Handler
}

// AuthMiddleware validates Firebase Auth tokens
type AuthMiddleware struct {
	authClient TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authClient TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{authClient: authClient}
}

// RequireAuth middleware that requires authentication
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		decodedToken, err := m.authClient.VerifyIDToken(r.Context(), parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		authInfo := AuthInfo{
			UserID: decodedToken.UID,
		}
		if claims, ok := decodedToken.Claims["email"].(string); ok {
			authInfo.Email = claims
		}

		next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authInfo)))
	})
}

// HeaderAuth trusts the X-User-ID header. Local development only.
type HeaderAuth struct{}

// RequireAuth rejects requests without an X-User-ID header.
func (HeaderAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			http.Error(w, "Missing "+UserIDHeader+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), AuthInfo{UserID: userID})))
	})
}

// WithAuth stores auth info and the user ID in ctx.
func WithAuth(ctx context.Context, info AuthInfo) context.Context {
	ctx = context.WithValue(ctx, AuthKey, info)
	return context.WithValue(ctx, UserIDKey, info.UserID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetAuth retrieves auth info from the request context
func GetAuth(r *http.Request) (AuthInfo, bool) {
	if info, ok := r.Context().Value(AuthKey).(AuthInfo); ok {
		return info, true
	}
	return AuthInfo{}, false
}
