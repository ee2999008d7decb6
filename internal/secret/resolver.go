// Package secret resolves app secrets (consumer secret, developer token) from
// SSM Parameter Store, the environment, or fixed values.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrNotFound is wrapped by resolvers when a secret has no value.
var ErrNotFound = errors.New("secret not found")

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver retrieves secret values by name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver fetches secrets from AWS Systems Manager Parameter Store.
type SSMResolver struct {
	client SSMClient
}

// NewSSMResolver returns a Resolver backed by SSM Parameter Store.
func NewSSMResolver(client SSMClient) Resolver {
	return &SSMResolver{client: client}
}

// GetSecret retrieves a SecureString parameter from SSM with decryption.
func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %q has no value: %w", name, ErrNotFound)
	}
	return *out.Parameter.Value, nil
}

// EnvResolver fetches secrets from environment variables.
// "/gophnote/consumer-secret" is read from GOPHNOTE_CONSUMER_SECRET.
type EnvResolver struct{}

// NewEnvResolver returns a Resolver that reads from environment variables.
func NewEnvResolver() Resolver {
	return &EnvResolver{}
}

// GetSecret reads from the environment variable derived from the parameter name.
func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := paramNameToEnvVar(name)
	val := os.Getenv(envName)
	if val == "" {
		return "", fmt.Errorf("environment variable %q (from param %q) is not set: %w", envName, name, ErrNotFound)
	}
	return val, nil
}

// paramNameToEnvVar converts an SSM parameter path to an environment
// variable name: every path segment joined with "_", uppercased, hyphens
// replaced.
// "/gophnote/consumer-secret" -> "GOPHNOTE_CONSUMER_SECRET"
// "developer-token"           -> "DEVELOPER_TOKEN"
func paramNameToEnvVar(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' })
	joined := strings.Join(parts, "_")
	return strings.ToUpper(strings.ReplaceAll(joined, "-", "_"))
}

// StaticResolver serves fixed values, typically from a config file.
type StaticResolver map[string]string

func (r StaticResolver) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := r[name]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("static secret %q: %w", name, ErrNotFound)
}

// ChainResolver tries each resolver in order and returns the first value.
type ChainResolver []Resolver

func (c ChainResolver) GetSecret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, r := range c {
		v, err := r.GetSecret(ctx, name)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}
	return "", errors.Join(errs...)
}
