package secret

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMClient struct {
	params map[string]string
}

func (f *fakeSSMClient) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	val, ok := f.params[*input.Name]
	if !ok {
		return nil, fmt.Errorf("parameter not found: %s", *input.Name)
	}
	if !aws.ToBool(input.WithDecryption) {
		return nil, fmt.Errorf("expected decryption to be requested")
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:  input.Name,
			Value: aws.String(val),
		},
	}, nil
}

func TestSSMResolver_GetSecret(t *testing.T) {
	resolver := NewSSMResolver(&fakeSSMClient{
		params: map[string]string{"/gophnote/consumer-secret": "s3cr3t"},
	})

	val, err := resolver.GetSecret(context.Background(), "/gophnote/consumer-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "s3cr3t" {
		t.Fatalf("expected %q, got %q", "s3cr3t", val)
	}

	if _, err := resolver.GetSecret(context.Background(), "/gophnote/missing"); err == nil {
		t.Fatal("expected error for missing parameter, got nil")
	}
}

func TestEnvResolver_GetSecret(t *testing.T) {
	t.Setenv("GOPHNOTE_DEVELOPER_TOKEN", "S=s1:U=1")
	resolver := NewEnvResolver()

	val, err := resolver.GetSecret(context.Background(), "/gophnote/developer-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "S=s1:U=1" {
		t.Fatalf("expected token, got %q", val)
	}

	_, err = resolver.GetSecret(context.Background(), "/gophnote/nonexistent-secret")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParamNameToEnvVar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/gophnote/consumer-secret", "GOPHNOTE_CONSUMER_SECRET"},
		{"/gophnote/developer-token", "GOPHNOTE_DEVELOPER_TOKEN"},
		{"developer-token", "DEVELOPER_TOKEN"},
	}

	for _, tc := range tests {
		got := paramNameToEnvVar(tc.input)
		if got != tc.expected {
			t.Errorf("paramNameToEnvVar(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestChainResolver(t *testing.T) {
	chain := ChainResolver{
		StaticResolver{"/gophnote/consumer-secret": ""},
		NewSSMResolver(&fakeSSMClient{params: map[string]string{"/gophnote/consumer-secret": "from-ssm"}}),
		StaticResolver{"/gophnote/consumer-secret": "too-late"},
	}
	val, err := chain.GetSecret(context.Background(), "/gophnote/consumer-secret")
	if err != nil || val != "from-ssm" {
		t.Fatalf("expected first non-empty value, got %q, %v", val, err)
	}

	_, err = ChainResolver{StaticResolver{}}.GetSecret(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = ChainResolver{}.GetSecret(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an empty chain, got %v", err)
	}
}
