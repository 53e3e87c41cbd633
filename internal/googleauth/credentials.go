// Package googleauth turns service-account settings into client options
// shared by the Drive, Calendar and Gmail clients.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrNotConfigured is returned when no credentials file is set.
var ErrNotConfigured = errors.New("google credentials not configured")

// Credentials locate a service-account key. Subject, when set, is the
// Workspace user the service account acts for through domain-wide
// delegation; Gmail needs it, Drive and Calendar can work without it.
type Credentials struct {
	File    string
	Subject string
}

// Configured reports whether a credentials file is set.
func (c Credentials) Configured() bool { return c.File != "" }

// ClientOptions builds the client options authenticating as the service
// account, or as Subject when one is set.
func ClientOptions(ctx context.Context, creds Credentials, scopes ...string) ([]option.ClientOption, error) {
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}
	data, err := os.ReadFile(creds.File)
	if err != nil {
		return nil, fmt.Errorf("service account key not found at %s: %w", creds.File, err)
	}
	if creds.Subject == "" {
		return []option.ClientOption{
			option.WithCredentialsFile(creds.File),
			option.WithScopes(scopes...),
		}, nil
	}

	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid service account key %s: %w", creds.File, err)
	}
	conf.Subject = creds.Subject
	return []option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx))}, nil
}

// IsNotFound reports whether err is a Google API 404.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
