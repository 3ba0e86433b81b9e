package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Token errors returned by the manager. Handlers map these to 401/403.
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWrongSubject = errors.New("token subject mismatch")
)

// AccessClaims is the payload of an access token. The role travels in the
// token so middleware can gate faculty-only routes without a database read;
// branch/year are looked up fresh when building access filters.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// refreshClaims carries only the user id.
type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the HS256 access and refresh tokens used
// by the API. Access tokens are short-lived and sent as Bearer headers; the
// refresh token is long-lived, stored on the user record, and delivered in an
// httpOnly cookie.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager creates a TokenManager. Secrets must be non-empty; TTLs of
// zero fall back to 15 minutes and 10 days.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 240 * time.Hour
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// RefreshTTL returns the refresh token lifetime, used for the cookie MaxAge.
func (tm *TokenManager) RefreshTTL() time.Duration {
	return tm.refreshTTL
}

// IssueAccess creates a signed access token for the given user.
func (tm *TokenManager) IssueAccess(userID primitive.ObjectID, role string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.accessSecret)
}

// IssueRefresh creates a signed refresh token for the given user.
func (tm *TokenManager) IssueRefresh(userID primitive.ObjectID) (string, error) {
	now := time.Now()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.refreshSecret)
}

// VerifyAccess parses and validates an access token, returning its claims.
func (tm *TokenManager) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return tm.accessSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token and checks that it was
// issued for the expected user.
func (tm *TokenManager) VerifyRefresh(tokenString string, expectedUser primitive.ObjectID) error {
	claims := &refreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return tm.refreshSecret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if claims.Subject != expectedUser.Hex() {
		return ErrWrongSubject
	}
	return nil
}
