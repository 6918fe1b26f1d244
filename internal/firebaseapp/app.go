// Package firebaseapp initializes the Firebase Admin SDK once for the
// Firestore, Auth and Messaging clients.
package firebaseapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

type Credentials struct {
	ProjectID string
	// File is a service account key path.
	File string
	// JSONBase64 is a base64 encoded service account key; it wins over File.
	JSONBase64 string
}

// New initializes the app. With no credentials it falls back to
// Application Default Credentials.
func New(ctx context.Context, creds Credentials) (*firebase.App, error) {
	var opts []option.ClientOption

	if creds.JSONBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(creds.JSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
		log.Println("Firebase: initializing from FIREBASE_CREDENTIALS_JSON.")
	} else if creds.File != "" {
		if _, err := os.Stat(creds.File); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s", creds.File)
		}
		opts = append(opts, option.WithCredentialsFile(creds.File))
		log.Printf("Firebase: initializing from file: %s.", creds.File)
	} else {
		log.Println("Firebase: initializing with application default credentials.")
	}

	var cfg *firebase.Config
	if creds.ProjectID != "" {
		cfg = &firebase.Config{ProjectID: creds.ProjectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}
