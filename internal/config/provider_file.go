package config

import (
	"context"
	"os"
	"strings"
)

// FileProvider implements SecretProvider by reading secret values from
// mounted files, the pattern used by Docker/Kubernetes secrets. Each key is
// an absolute file path; the file's contents (trailing whitespace trimmed)
// become the secret value.
type FileProvider struct{}

// NewFileProvider creates a new FileProvider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// GetSecretsBatch reads each key as a file path. Unreadable or missing files
// are omitted from the result rather than erroring, so the loader can report
// exactly which target variables stayed unresolved.
func (p *FileProvider) GetSecretsBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(key)
		if err != nil {
			continue
		}
		result[key] = strings.TrimRight(string(data), "\r\n")
	}
	return result, nil
}
