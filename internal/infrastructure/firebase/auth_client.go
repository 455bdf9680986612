package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"marketchat/internal/domain/entity"
)

// FirebaseVerifier checks ID tokens with the Firebase Admin SDK.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{
		client: client,
	}
}

func (f *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*entity.Session, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	return &entity.Session{
		UserID:      token.UID,
		DisplayName: claimString(token.Claims, "name"),
		PhotoURL:    claimString(token.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
