package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
)

const testIssuer = "https://canvas.instructure.com"

type launchTestKit struct {
	verifier *launchVerifier
	key      *rsa.PrivateKey
}

func newLaunchTestKit(t *testing.T) *launchTestKit {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	jwksHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pub := &key.PublicKey
		e := big.NewInt(int64(pub.E))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(e.Bytes()),
			}},
		})
	})
	srv := httptest.NewServer(jwksHandler)
	t.Cleanup(srv.Close)

	return &launchTestKit{
		verifier: &launchVerifier{
			log:        testLogger(t),
			httpClient: srv.Client(),
			issuer:     testIssuer,
			clientID:   "client-1",
			jwks:       newJWKSCache(srv.Client(), srv.URL),
		},
		key: key,
	}
}

func (k *launchTestKit) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(k.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func validLaunchClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   "client-1",
		"sub":   "user-123",
		"name":  "Ana Torres",
		"email": "ana@example.edu",
		"nonce": "nonce-1",
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
		claimDeploymentID: "deploy-1",
		claimContext: map[string]any{
			"id":    "course-55",
			"title": "Programming I",
		},
		claimRoles: []any{instructorRoleURI},
	}
}

func TestVerifyExtractsLaunchIdentity(t *testing.T) {
	kit := newLaunchTestKit(t)

	identity, err := kit.verifier.Verify(context.Background(), kit.sign(t, validLaunchClaims()), "nonce-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Sub != "user-123" || identity.CourseID != "course-55" {
		t.Fatalf("identity = %+v", identity)
	}
	if identity.DeploymentID != "deploy-1" {
		t.Fatalf("deployment = %q", identity.DeploymentID)
	}
	if identity.Role != "instructor" {
		t.Fatalf("role = %q", identity.Role)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	kit := newLaunchTestKit(t)
	claims := validLaunchClaims()
	claims["iss"] = "https://evil.example.com"

	_, err := kit.verifier.Verify(context.Background(), kit.sign(t, claims), "nonce-1")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	kit := newLaunchTestKit(t)
	claims := validLaunchClaims()
	claims["aud"] = "someone-else"

	_, err := kit.verifier.Verify(context.Background(), kit.sign(t, claims), "nonce-1")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestVerifyRejectsNonceMismatch(t *testing.T) {
	kit := newLaunchTestKit(t)

	_, err := kit.verifier.Verify(context.Background(), kit.sign(t, validLaunchClaims()), "other-nonce")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	kit := newLaunchTestKit(t)
	claims := validLaunchClaims()
	claims["iat"] = time.Now().Add(-time.Hour).Unix()
	claims["exp"] = time.Now().Add(-30 * time.Minute).Unix()

	_, err := kit.verifier.Verify(context.Background(), kit.sign(t, claims), "nonce-1")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestVerifyRejectsMissingContext(t *testing.T) {
	kit := newLaunchTestKit(t)
	claims := validLaunchClaims()
	delete(claims, claimContext)

	_, err := kit.verifier.Verify(context.Background(), kit.sign(t, claims), "nonce-1")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	kit := newLaunchTestKit(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, validLaunchClaims())
	unsigned, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = kit.verifier.Verify(context.Background(), unsigned, "nonce-1")
	if !errors.Is(err, apperrors.ErrInvalidAssertion) {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestAudContains(t *testing.T) {
	if !audContains("client-1", "client-1") {
		t.Fatal("string audience not matched")
	}
	if !audContains([]any{"other", "client-1"}, "client-1") {
		t.Fatal("array audience not matched")
	}
	if audContains([]any{"other"}, "client-1") {
		t.Fatal("wrong audience matched")
	}
}
