package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// UserMetadata mirrors the user_metadata claim issued by the hosted auth
// provider.
type UserMetadata struct {
	AccountType        string `json:"account_type,omitempty"`
	VerificationStatus string `json:"verification_status,omitempty"`
	Role               string `json:"role,omitempty"`
}

type Claims struct {
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

type ctxKey int

const userKey ctxKey = iota

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Parse validates the token and returns the user it names.
func (a *Authenticator) Parse(tokenString string) (*domain.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &domain.User{
		ID:                 claims.Subject,
		AccountType:        claims.UserMetadata.AccountType,
		VerificationStatus: claims.UserMetadata.VerificationStatus,
		Role:               claims.UserMetadata.Role,
	}, nil
}

// Middleware attaches the bearer token's user to the request context.
// Requests without a token pass through anonymously; a bad token is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}
		user, err := a.Parse(tokenString)
		if err != nil {
			a.logger.Debug("rejecting bearer token", zap.Error(err))
			respondWithError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everyone but admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !user.IsAdmin() {
			respondWithError(w, http.StatusForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}
