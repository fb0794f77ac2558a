package config

import "context"

// SecretProvider resolves secret pointers: SSM parameter paths in deployed
// environments, environment variables locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Missing keys are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
