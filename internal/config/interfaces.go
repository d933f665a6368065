package config

import "context"

// SecretProvider abstracts the retrieval of secret values referenced from the
// environment, supporting mounted secret files (production) and plain
// environment variables (local development). This interface enables dependency
// injection for testing and environment-specific secret resolution.
type SecretProvider interface {
	// GetSecretsBatch resolves multiple secret references. The keys slice
	// contains provider-specific identifiers (file paths or variable names).
	// Returns a map of key -> plaintext value for all successfully resolved
	// references; missing keys are omitted rather than erroring.
	GetSecretsBatch(ctx context.Context, keys []string) (map[string]string, error)
}
