// utils/firebase.go
package utils

import (
	"context"
	"fmt"

	"villagestay/config"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewFirestoreClient initializes the Firebase App and returns its Firestore client.
func NewFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	var opts []option.ClientOption
	if config.AppConfig.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(config.AppConfig.FirebaseCredentials))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: config.AppConfig.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: error initializing app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: error getting Firestore client: %w", err)
	}
	return client, nil
}
