// README: Firebase Admin SDK initialisation: ID-token verifier for auth and
// the messaging client used for driver/rider push notifications.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

type firebaseApp struct {
	auth      *auth.Client
	messaging *messaging.Client
}

// NewFirebase creates the token verifier and messaging client. If
// credentialsFile is empty, application-default credentials are used.
func NewFirebase(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, *messaging.Client, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}
	return &firebaseApp{auth: authClient, messaging: msgClient}, msgClient, nil
}

func (a *firebaseApp) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := a.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}
