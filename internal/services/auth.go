package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/utils"
)

// Session is the identity carried by an API session token. It scopes the
// caller to the single course the launch happened in.
type Session struct {
	UserID   string
	CourseID string
	Name     string
	Role     string
}

type sessionClaims struct {
	CourseID string `json:"course_id"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthService mints and parses the short-lived session tokens handed out
// after a verified launch.
type AuthService interface {
	IssueSessionToken(s Session) (string, error)
	ParseSessionToken(token string) (*Session, error)
}

type authService struct {
	log    *logger.Logger
	secret []byte
	ttl    time.Duration
}

func NewAuthService(log *logger.Logger) (AuthService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	secret := strings.TrimSpace(os.Getenv("SESSION_JWT_SECRET"))
	if secret == "" {
		return nil, fmt.Errorf("missing SESSION_JWT_SECRET")
	}
	ttl := utils.GetEnvAsDuration("SESSION_TOKEN_TTL", 8*time.Hour, log)
	return &authService{
		log:    log.With("service", "AuthService"),
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

func (a *authService) IssueSessionToken(s Session) (string, error) {
	if s.UserID == "" || s.CourseID == "" {
		return "", fmt.Errorf("session requires user and course")
	}
	now := time.Now()
	claims := sessionClaims{
		CourseID: s.CourseID,
		Name:     s.Name,
		Role:     s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *authService) ParseSessionToken(token string) (*Session, error) {
	claims := &sessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	tok, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidAssertion, err)
	}
	if tok == nil || !tok.Valid || claims.Subject == "" || claims.CourseID == "" {
		return nil, apperrors.ErrInvalidAssertion
	}
	return &Session{
		UserID:   claims.Subject,
		CourseID: claims.CourseID,
		Name:     claims.Name,
		Role:     claims.Role,
	}, nil
}
