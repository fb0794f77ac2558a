package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// fakeSSM serves parameters from a map and records each batch.
type fakeSSM struct {
	params  map[string]string
	err     error
	batches [][]string
}

func (f *fakeSSM) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("decryption not requested")
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.params[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
	}
	return out, nil
}

func TestSSMProvider_BatchesOfTen(t *testing.T) {
	params := make(map[string]string)
	var keys []string
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/prod/zonetime/p%02d", i)
		params[k] = fmt.Sprintf("v%d", i)
		keys = append(keys, k)
	}
	client := &fakeSSM{params: params}
	p := newSSMProviderWithClient("us-east-1", client)

	got, err := p.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if len(got) != 23 {
		t.Errorf("resolved %d params, want 23", len(got))
	}
	if len(client.batches) != 3 {
		t.Fatalf("made %d calls, want 3", len(client.batches))
	}
	if len(client.batches[0]) != 10 || len(client.batches[2]) != 3 {
		t.Errorf("batch sizes = %d..%d", len(client.batches[0]), len(client.batches[2]))
	}
	if got["/prod/zonetime/p22"] != "v22" {
		t.Errorf("p22 = %q", got["/prod/zonetime/p22"])
	}
}

func TestSSMProvider_InvalidParameter(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &fakeSSM{params: map[string]string{"/a": "1"}})

	_, err := p.GetParametersBatch(context.Background(), []string{"/a", "/missing"})
	if err == nil || !strings.Contains(err.Error(), "/missing") {
		t.Fatalf("err = %v, want not-found naming /missing", err)
	}
}

func TestSSMProvider_ClientError(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &fakeSSM{err: errors.New("throttled")})

	if _, err := p.GetParametersBatch(context.Background(), []string{"/a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	client := &fakeSSM{}
	p := newSSMProviderWithClient("us-east-1", client)

	got, err := p.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty map", got)
	}
	if len(client.batches) != 0 {
		t.Error("no SSM call expected for empty keys")
	}
}

func TestSSMProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &fakeSSM{params: map[string]string{"/a": "1"}}
	p := newSSMProviderWithClient("us-east-1", client)

	if _, err := p.GetParametersBatch(ctx, []string{"/a"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(client.batches) != 0 {
		t.Error("no SSM call expected after cancellation")
	}
}

func TestNewSSMProvider(t *testing.T) {
	p := NewSSMProvider("eu-west-1", "http://localhost:4566")
	if p.region != "eu-west-1" || p.endpoint != "http://localhost:4566" {
		t.Errorf("provider = %+v", p)
	}
	var _ SecretProvider = p
}

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("ZONETIME_TEST_SECRET", "s3cret")

	p := NewEnvVarProvider()
	got, err := p.GetParametersBatch(context.Background(), []string{"ZONETIME_TEST_SECRET", "ZONETIME_TEST_UNSET"})
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if len(got) != 1 || got["ZONETIME_TEST_SECRET"] != "s3cret" {
		t.Errorf("got %v", got)
	}
}
