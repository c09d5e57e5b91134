package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/logger"
)

// SecretsClient wraps the AWS Secrets Manager client, falling back to
// plain environment variables when no ARN is configured (local/dev).
type SecretsClient struct {
	svc *secretsmanager.Client
}

// NewSecretsClient loads the default AWS config chain (env vars,
// shared config, IAM role) and builds a Secrets Manager client.
func NewSecretsClient(ctx context.Context) (*SecretsClient, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return &SecretsClient{svc: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSecretString fetches a secret string from Secrets Manager using
// an ARN named by arnEnvVar. If the ARN var is unset or the fetch
// fails, it falls back to reading fallbackEnvVar directly. A secret
// body that parses as single-key JSON has that key's value extracted;
// otherwise the raw string is returned.
func (c *SecretsClient) GetSecretString(ctx context.Context, arnEnvVar, fallbackEnvVar string) (string, error) {
	if arn := os.Getenv(arnEnvVar); arn != "" {
		result, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(arn),
		})
		if err == nil && result.SecretString != nil && *result.SecretString != "" {
			raw := *result.SecretString
			var asJSON map[string]string
			if jsonErr := json.Unmarshal([]byte(raw), &asJSON); jsonErr == nil && len(asJSON) == 1 {
				for _, v := range asJSON {
					return v, nil
				}
			}
			return raw, nil
		}
		logger.Warn("secrets manager fetch failed, falling back to env var",
			zap.String("arnEnvVar", arnEnvVar), zap.String("fallbackEnvVar", fallbackEnvVar), zap.Error(err))
	}

	if v := os.Getenv(fallbackEnvVar); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret not found using ARN env var %q or fallback env var %q", arnEnvVar, fallbackEnvVar)
}
