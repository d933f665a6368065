package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileProvider_ReadsAndTrims(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api_key")
	if err := os.WriteFile(path, []byte("secret-value\n"), 0o600); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}

	provider := NewFileProvider()
	result, err := provider.GetSecretsBatch(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("GetSecretsBatch failed: %v", err)
	}
	if result[path] != "secret-value" {
		t.Errorf("expected trimmed secret, got %q", result[path])
	}
}

func TestFileProvider_OmitsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("ok"), 0o600); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}
	missing := filepath.Join(dir, "missing")

	provider := NewFileProvider()
	result, err := provider.GetSecretsBatch(context.Background(), []string{present, missing})
	if err != nil {
		t.Fatalf("GetSecretsBatch failed: %v", err)
	}
	if _, ok := result[missing]; ok {
		t.Error("missing file should be omitted, not present")
	}
	if result[present] != "ok" {
		t.Errorf("expected present secret, got %q", result[present])
	}
}

func TestEnvVarProvider_LooksUpEnvironment(t *testing.T) {
	t.Setenv("SOME_SECRET", "from-env")

	provider := NewEnvVarProvider()
	result, err := provider.GetSecretsBatch(context.Background(), []string{"SOME_SECRET", "ABSENT_SECRET_XYZ"})
	if err != nil {
		t.Fatalf("GetSecretsBatch failed: %v", err)
	}
	if result["SOME_SECRET"] != "from-env" {
		t.Errorf("expected env secret, got %q", result["SOME_SECRET"])
	}
	if _, ok := result["ABSENT_SECRET_XYZ"]; ok {
		t.Error("absent variable should be omitted")
	}
}
