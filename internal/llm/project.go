package llm

import (
	"context"

	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Project sources reported by DiscoverProject.
const (
	SourceConfig      = "config"
	SourceCredentials = "credentials"
	SourceFallback    = "fallback"
)

// findCredentials is replaced in tests.
var findCredentials = func(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return "", err
	}
	return creds.ProjectID, nil
}

// DiscoverProject returns explicit if set, else the project of the
// application default credentials, else FallbackProject.
func DiscoverProject(ctx context.Context, explicit string) (project, source string) {
	if explicit != "" {
		return explicit, SourceConfig
	}
	if id, err := findCredentials(ctx); err == nil && id != "" {
		return id, SourceCredentials
	}
	return FallbackProject, SourceFallback
}
