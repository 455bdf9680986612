package firebase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"marketchat/internal/domain/entity"
)

const devIssuer = "marketchat-dev"

// DevTokens mints and verifies HS256 tokens for local development, shaped
// like Firebase ID tokens (sub, name, picture).
type DevTokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewDevTokens(secret string, expiry time.Duration) *DevTokens {
	return &DevTokens{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (d *DevTokens) Issue(uid, name, picture string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("uid is required")
	}

	now := d.now()
	claims := idTokenClaims{
		Name:    name,
		Picture: picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    devIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d.expiry)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
}

func (d *DevTokens) Verify(ctx context.Context, token string) (*entity.Session, error) {
	var claims idTokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return d.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}

	if !claims.VerifyIssuer(devIssuer, true) || claims.Subject == "" {
		return nil, fmt.Errorf("not a development token")
	}

	return &entity.Session{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}
