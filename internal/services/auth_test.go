package services

import (
	"errors"
	"testing"

	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
)

func newTestAuth(t *testing.T) AuthService {
	t.Helper()
	t.Setenv("SESSION_JWT_SECRET", "secret-for-tests")
	auth, err := NewAuthService(testLogger(t))
	if err != nil {
		t.Fatalf("auth init: %v", err)
	}
	return auth
}

func TestSessionTokenRoundTrip(t *testing.T) {
	auth := newTestAuth(t)

	token, err := auth.IssueSessionToken(Session{
		UserID:   "u1",
		CourseID: "c1",
		Name:     "Ana",
		Role:     "student",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	session, err := auth.ParseSessionToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if session.UserID != "u1" || session.CourseID != "c1" || session.Name != "Ana" {
		t.Fatalf("session = %+v", session)
	}
}

func TestSessionTokenRejectsTampering(t *testing.T) {
	auth := newTestAuth(t)

	token, err := auth.IssueSessionToken(Session{UserID: "u1", CourseID: "c1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = auth.ParseSessionToken(token + "x")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestSessionTokenRequiresUserAndCourse(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.IssueSessionToken(Session{UserID: "u1"}); err == nil {
		t.Fatal("issued a token without a course")
	}
	if _, err := auth.IssueSessionToken(Session{CourseID: "c1"}); err == nil {
		t.Fatal("issued a token without a user")
	}
}
