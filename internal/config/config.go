// Package config resolves provider credentials and related settings from
// the process environment, optionally seeded from a .genix.env file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"genix/internal/gen"
)

// DefaultEnvFile is loaded at startup when present.
const DefaultEnvFile = ".genix.env"

// Environment variable names, one credential per provider.
const (
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvDashScopeKey  = "DASHSCOPE_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBase    = "OPENAI_API_BASE"
	EnvGoogleKey     = "GOOGLE_CLOUD_API_KEY"
	EnvTripoKey      = "TRIPO_API_KEY"
	EnvS3Bucket      = "AWS_S3_BUCKET"
	EnvS3Prefix      = "AWS_S3_PREFIX"
	EnvRegion        = "AWS_REGION"
)

// LoadEnvFile loads variables from the given env file into the process
// environment. A missing file is not an error; values already set in the
// environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// APIKey returns the named credential, failing with a CredentialError
// before any request is attempted when it is absent.
func APIKey(envVar string) (string, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return "", &gen.CredentialError{Var: envVar}
	}
	return v, nil
}

// OpenAI returns the OpenAI key and base URL. The base URL is optional and
// defaults to the public endpoint when empty.
func OpenAI() (key, baseURL string, err error) {
	key, err = APIKey(EnvOpenAIKey)
	if err != nil {
		return "", "", err
	}
	return key, os.Getenv(EnvOpenAIBase), nil
}

// S3 holds the publish destination.
type S3 struct {
	Bucket string
	Prefix string
	Region string
}

// PublishTarget resolves the S3 publish settings. The bucket is required;
// prefix defaults to "genix" and region to us-west-2.
func PublishTarget() (S3, error) {
	bucket := os.Getenv(EnvS3Bucket)
	if bucket == "" {
		return S3{}, &gen.CredentialError{Var: EnvS3Bucket}
	}
	prefix := os.Getenv(EnvS3Prefix)
	if prefix == "" {
		prefix = "genix"
	}
	region := os.Getenv(EnvRegion)
	if region == "" {
		region = "us-west-2"
	}
	return S3{Bucket: bucket, Prefix: prefix, Region: region}, nil
}
