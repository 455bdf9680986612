package firebase

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/logger"
)

// SecureTokenJWKSURL publishes the keys that sign Firebase ID tokens.
const SecureTokenJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type idTokenClaims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier validates Firebase ID tokens against Google's published keys
// without the Admin SDK or service account credentials.
type JWKSVerifier struct {
	projectID string
	keyFunc   jwt.Keyfunc
	jwks      *keyfunc.JWKS
}

func NewJWKSVerifier(ctx context.Context, projectID string) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(SecureTokenJWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}

	v := newJWKSVerifier(projectID, jwks.Keyfunc)
	v.jwks = jwks
	return v, nil
}

func newJWKSVerifier(projectID string, keyFunc jwt.Keyfunc) *JWKSVerifier {
	return &JWKSVerifier{
		projectID: projectID,
		keyFunc:   keyFunc,
	}
}

func (v *JWKSVerifier) Verify(ctx context.Context, idToken string) (*entity.Session, error) {
	var claims idTokenClaims
	_, err := jwt.ParseWithClaims(idToken, &claims, v.keyFunc, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, err
	}

	if !claims.VerifyIssuer("https://securetoken.google.com/"+v.projectID, true) {
		return nil, fmt.Errorf("unexpected token issuer %q", claims.Issuer)
	}
	if !claims.VerifyAudience(v.projectID, true) {
		return nil, fmt.Errorf("token audience does not match project %s", v.projectID)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &entity.Session{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
