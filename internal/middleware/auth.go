package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quizsmith-backend/internal/session"
)

type contextKey string

const UserIDKey contextKey = "user_id"

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// Middleware validates the bearer token and attaches user_id to context.
// Requests without a valid token are rejected.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := j.userFromRequest(r)
		if err != "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalMiddleware attaches the authenticated user when a valid token is
// present and the anonymous sentinel otherwise. A malformed token is still
// rejected rather than silently downgraded.
func (j *JWTAuth) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := session.AnonymousUser
		if r.Header.Get("Authorization") != "" {
			id, errMsg := j.userFromRequest(r)
			if errMsg != "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", errMsg, r)
				return
			}
			userID = id
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromRequest returns the user ID or a non-empty error message.
func (j *JWTAuth) userFromRequest(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format"
	}

	userID, err := j.ParseToken(parts[1])
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return "", "Token has expired"
		}
		return "", "Invalid token"
	}
	return userID, ""
}

// ParseToken verifies the signature and extracts the user identity from the
// user_id claim, falling back to the standard sub claim.
func (j *JWTAuth) ParseToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", jwt.ErrTokenInvalidClaims
}

// GetUserID extracts user_id from request context. Returns the anonymous
// sentinel when no middleware ran.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok && id != "" {
		return id
	}
	return session.AnonymousUser
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
