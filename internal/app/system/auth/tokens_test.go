package auth

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	return tm
}

func TestNewTokenManager_RequiresSecrets(t *testing.T) {
	if _, err := NewTokenManager("", "refresh", 0, 0); err == nil {
		t.Error("expected error for empty access secret")
	}
	if _, err := NewTokenManager("access", "", 0, 0); err == nil {
		t.Error("expected error for empty refresh secret")
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	tm := newTestManager(t)
	userID := primitive.NewObjectID()

	token, err := tm.IssueAccess(userID, "faculty")
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	claims, err := tm.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.Subject != userID.Hex() {
		t.Errorf("Subject = %q, want %q", claims.Subject, userID.Hex())
	}
	if claims.Role != "faculty" {
		t.Errorf("Role = %q, want faculty", claims.Role)
	}
}

func TestAccessToken_WrongSecretRejected(t *testing.T) {
	tm := newTestManager(t)
	other, _ := NewTokenManager("a-different-secret-entirely", "refresh-secret-for-tests", time.Minute, time.Hour)

	token, err := other.IssueAccess(primitive.NewObjectID(), "student")
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	if _, err := tm.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess() error = %v, want ErrInvalidToken", err)
	}
}

func TestAccessToken_RefreshSecretNotInterchangeable(t *testing.T) {
	tm := newTestManager(t)
	userID := primitive.NewObjectID()

	refresh, err := tm.IssueRefresh(userID)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	if _, err := tm.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("a refresh token must not verify as an access token, got err = %v", err)
	}
}

func TestAccessToken_Expired(t *testing.T) {
	tm, err := NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	// Negative TTL falls back to the default, so force expiry directly.
	tm.accessTTL = -time.Minute

	token, err := tm.IssueAccess(primitive.NewObjectID(), "student")
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	if _, err := tm.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token should be rejected, got err = %v", err)
	}
}

func TestRefreshToken_SubjectMismatch(t *testing.T) {
	tm := newTestManager(t)

	token, err := tm.IssueRefresh(primitive.NewObjectID())
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	if err := tm.VerifyRefresh(token, primitive.NewObjectID()); !errors.Is(err, ErrWrongSubject) {
		t.Errorf("VerifyRefresh() error = %v, want ErrWrongSubject", err)
	}
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	tm := newTestManager(t)
	userID := primitive.NewObjectID()

	token, err := tm.IssueRefresh(userID)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}
	if err := tm.VerifyRefresh(token, userID); err != nil {
		t.Errorf("VerifyRefresh() error = %v", err)
	}
}
