package services

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
)

// LTI claim URLs per the IMS spec.
const (
	claimContext      = "https://purl.imsglobal.org/spec/lti/claim/context"
	claimDeploymentID = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"
	claimRoles        = "https://purl.imsglobal.org/spec/lti/claim/roles"

	instructorRoleURI = "http://purl.imsglobal.org/vocab/lis/v2/membership#Instructor"
)

// LaunchIdentity is what the platform asserts about the person and context
// behind a launch. The core trusts it completely once verification passes.
type LaunchIdentity struct {
	Sub          string
	Name         string
	Email        string
	Role         string
	CourseID     string
	CourseName   string
	DeploymentID string
}

// LaunchVerifier validates a signed LTI launch assertion against the
// platform's published keys and extracts the launch identity.
type LaunchVerifier interface {
	Verify(ctx context.Context, idToken, expectedNonce string) (*LaunchIdentity, error)
}

type launchVerifier struct {
	log        *logger.Logger
	httpClient *http.Client
	issuer     string
	clientID   string
	jwks       *jwksCache
}

func NewLaunchVerifier(log *logger.Logger) (LaunchVerifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	clientID := strings.TrimSpace(os.Getenv("LTI_CLIENT_ID"))
	if clientID == "" {
		return nil, fmt.Errorf("missing LTI_CLIENT_ID")
	}

	issuer := strings.TrimSpace(os.Getenv("LTI_ISSUER"))
	if issuer == "" {
		issuer = "https://canvas.instructure.com"
	}
	jwksURL := strings.TrimSpace(os.Getenv("LTI_JWKS_URL"))
	if jwksURL == "" {
		jwksURL = "https://sso.canvaslms.com/api/lti/security/jwks"
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	return &launchVerifier{
		log:        log.With("service", "LaunchVerifier"),
		httpClient: httpClient,
		issuer:     issuer,
		clientID:   clientID,
		jwks:       newJWKSCache(httpClient, jwksURL),
	}, nil
}

func (lv *launchVerifier) Verify(ctx context.Context, idToken, expectedNonce string) (*LaunchIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("empty id_token: %w", apperrors.ErrInvalidAssertion)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	claims := jwt.MapClaims{}

	tok, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return lv.jwks.getKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidAssertion, err)
	}
	if tok == nil || !tok.Valid {
		return nil, apperrors.ErrInvalidAssertion
	}

	iss, _ := claims["iss"].(string)
	if iss != lv.issuer {
		return nil, fmt.Errorf("issuer mismatch %q: %w", iss, apperrors.ErrInvalidAssertion)
	}
	if !audContains(claims["aud"], lv.clientID) {
		return nil, fmt.Errorf("audience mismatch: %w", apperrors.ErrInvalidAssertion)
	}
	if expectedNonce != "" {
		nonce, _ := claims["nonce"].(string)
		if nonce != expectedNonce {
			return nil, fmt.Errorf("nonce mismatch: %w", apperrors.ErrInvalidAssertion)
		}
	}

	identity := claimsToLaunchIdentity(claims)
	if identity.Sub == "" {
		return nil, fmt.Errorf("missing sub: %w", apperrors.ErrInvalidAssertion)
	}
	if identity.CourseID == "" {
		return nil, fmt.Errorf("missing context claim: %w", apperrors.ErrInvalidAssertion)
	}
	return identity, nil
}

func claimsToLaunchIdentity(claims jwt.MapClaims) *LaunchIdentity {
	out := &LaunchIdentity{Role: "student"}

	out.Sub, _ = claims["sub"].(string)
	out.Name, _ = claims["name"].(string)
	out.Email, _ = claims["email"].(string)
	out.DeploymentID, _ = claims[claimDeploymentID].(string)

	if ctxClaim, ok := claims[claimContext].(map[string]any); ok {
		out.CourseID, _ = ctxClaim["id"].(string)
		out.CourseName, _ = ctxClaim["title"].(string)
	}
	if roles, ok := claims[claimRoles].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok && s == instructorRoleURI {
				out.Role = "instructor"
				break
			}
		}
	}
	return out
}

func audContains(aud any, required string) bool {
	switch v := aud.(type) {
	case string:
		return v == required
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && s == required {
				return true
			}
		}
	}
	return false
}

// ----- JWKS cache (RSA only; the platform signs launches with RS256) -----

type jwksCache struct {
	httpClient *http.Client
	jwksURL    string

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	ttl       time.Duration
}

func newJWKSCache(httpClient *http.Client, jwksURL string) *jwksCache {
	return &jwksCache{
		httpClient: httpClient,
		jwksURL:    jwksURL,
		keys:       map[string]*rsa.PublicKey{},
		ttl:        6 * time.Hour,
	}
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	key := j.keys[kid]
	stale := time.Since(j.fetchedAt) > j.ttl
	j.mu.RUnlock()

	if key != nil && !stale {
		return key, nil
	}

	if err := j.refresh(ctx); err != nil {
		// Fall back to a cached key when the refresh fails.
		j.mu.RLock()
		key = j.keys[kid]
		j.mu.RUnlock()
		if key != nil {
			return key, nil
		}
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	key = j.keys[kid]
	if key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	return key, nil
}

func (j *jwksCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.jwksURL, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks request failed: %s", res.Status)
	}

	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}

	keys := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks contained no usable RSA keys")
	}

	j.mu.Lock()
	j.keys = keys
	j.fetchedAt = time.Now()
	j.mu.Unlock()
	return nil
}

func rsaKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
