package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"genix/internal/gen"
)

func TestAPIKeyMissing(t *testing.T) {
	t.Setenv(EnvTripoKey, "")
	os.Unsetenv(EnvTripoKey)
	_, err := APIKey(EnvTripoKey)
	var cerr *gen.CredentialError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if cerr.Var != EnvTripoKey {
		t.Fatalf("var = %q", cerr.Var)
	}
}

func TestAPIKeyPresent(t *testing.T) {
	t.Setenv(EnvElevenLabsKey, "xi-test")
	key, err := APIKey(EnvElevenLabsKey)
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if key != "xi-test" {
		t.Fatalf("key = %q", key)
	}
}

func TestLoadEnvFileMissingIsFine(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing env file should not error: %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".genix.env")
	if err := os.WriteFile(p, []byte("GENIX_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GENIX_TEST_VALUE") })
	if err := LoadEnvFile(p); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("GENIX_TEST_VALUE"); got != "from-file" {
		t.Fatalf("GENIX_TEST_VALUE = %q", got)
	}
}

func TestPublishTargetDefaults(t *testing.T) {
	t.Setenv(EnvS3Bucket, "media")
	t.Setenv(EnvS3Prefix, "")
	os.Unsetenv(EnvS3Prefix)
	t.Setenv(EnvRegion, "")
	os.Unsetenv(EnvRegion)

	s3, err := PublishTarget()
	if err != nil {
		t.Fatalf("PublishTarget: %v", err)
	}
	if s3.Bucket != "media" || s3.Prefix != "genix" || s3.Region != "us-west-2" {
		t.Fatalf("unexpected target: %+v", s3)
	}
}

func TestPublishTargetRequiresBucket(t *testing.T) {
	t.Setenv(EnvS3Bucket, "")
	os.Unsetenv(EnvS3Bucket)
	_, err := PublishTarget()
	var cerr *gen.CredentialError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
}
