package registry

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecr "github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
)

type fakeECR struct {
	describeErr error
	createErr   error
	policyErr   error
	token       string
	tokenErr    error

	describeCalls int
	createCalls   int
	policyCalls   int
	lastPolicy    string
	lastRegistry  string
}

func (f *fakeECR) DescribeRepositories(_ context.Context, in *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	f.describeCalls++
	if in.RegistryId != nil {
		f.lastRegistry = *in.RegistryId
	}
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &ecr.DescribeRepositoriesOutput{}, nil
}

func (f *fakeECR) CreateRepository(_ context.Context, _ *ecr.CreateRepositoryInput, _ ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ecr.CreateRepositoryOutput{}, nil
}

func (f *fakeECR) PutLifecyclePolicy(_ context.Context, in *ecr.PutLifecyclePolicyInput, _ ...func(*ecr.Options)) (*ecr.PutLifecyclePolicyOutput, error) {
	f.policyCalls++
	if in.LifecyclePolicyText != nil {
		f.lastPolicy = *in.LifecyclePolicyText
	}
	if f.policyErr != nil {
		return nil, f.policyErr
	}
	return &ecr.PutLifecyclePolicyOutput{}, nil
}

func (f *fakeECR) GetAuthorizationToken(_ context.Context, _ *ecr.GetAuthorizationTokenInput, _ ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	if f.token == "" {
		return &ecr.GetAuthorizationTokenOutput{}, nil
	}
	return &ecr.GetAuthorizationTokenOutput{
		AuthorizationData: []types.AuthorizationData{{AuthorizationToken: aws.String(f.token)}},
	}, nil
}

func newTestClient(fake *fakeECR, cfg ECRConfig) *ecrClient {
	return &ecrClient{cfg: cfg, client: fake, registry: "123456789012.dkr.ecr.us-east-1.amazonaws.com"}
}

func TestEnsureRepositoryExists(t *testing.T) {
	fake := &fakeECR{}
	c := newTestClient(fake, ECRConfig{AccountID: "123456789012", CreateRepo: true})

	if err := c.EnsureRepository(context.Background(), "team/app"); err != nil {
		t.Fatalf("EnsureRepository returned error: %v", err)
	}
	if fake.createCalls != 0 {
		t.Fatalf("expected no create call for existing repository, got %d", fake.createCalls)
	}
	if fake.lastRegistry != "123456789012" {
		t.Fatalf("expected registry id on describe, got %q", fake.lastRegistry)
	}
}

func TestEnsureRepositoryCreatesWhenMissing(t *testing.T) {
	fake := &fakeECR{describeErr: &types.RepositoryNotFoundException{}}
	c := newTestClient(fake, ECRConfig{CreateRepo: true})

	if err := c.EnsureRepository(context.Background(), "team/app"); err != nil {
		t.Fatalf("EnsureRepository returned error: %v", err)
	}
	if fake.createCalls != 1 {
		t.Fatalf("expected one create call, got %d", fake.createCalls)
	}
	if fake.policyCalls != 0 {
		t.Fatalf("expected no lifecycle policy call, got %d", fake.policyCalls)
	}
}

func TestEnsureRepositoryMissingWithoutCreate(t *testing.T) {
	fake := &fakeECR{describeErr: &types.RepositoryNotFoundException{}}
	c := newTestClient(fake, ECRConfig{CreateRepo: false})

	if err := c.EnsureRepository(context.Background(), "team/app"); err == nil {
		t.Fatalf("expected error when repository is missing and auto-create is disabled")
	}
	if fake.createCalls != 0 {
		t.Fatalf("expected no create call, got %d", fake.createCalls)
	}
}

func TestEnsureRepositoryConcurrentCreate(t *testing.T) {
	fake := &fakeECR{
		describeErr: &types.RepositoryNotFoundException{},
		createErr:   &types.RepositoryAlreadyExistsException{},
	}
	c := newTestClient(fake, ECRConfig{CreateRepo: true})

	if err := c.EnsureRepository(context.Background(), "team/app"); err != nil {
		t.Fatalf("expected concurrent create to be tolerated, got %v", err)
	}
}

func TestEnsureRepositoryDryRunSkipsWrites(t *testing.T) {
	fake := &fakeECR{describeErr: &types.RepositoryNotFoundException{}}
	c := newTestClient(fake, ECRConfig{CreateRepo: true, LifecyclePolicy: `{"rules":[]}`, DryRun: true})

	if err := c.EnsureRepository(context.Background(), "team/app"); err != nil {
		t.Fatalf("EnsureRepository returned error: %v", err)
	}
	if fake.describeCalls != 1 {
		t.Fatalf("dry run should still describe the repository, got %d calls", fake.describeCalls)
	}
	if fake.createCalls != 0 {
		t.Fatalf("dry run must not create the repository, got %d calls", fake.createCalls)
	}
	if fake.policyCalls != 0 {
		t.Fatalf("dry run must not apply a lifecycle policy, got %d calls", fake.policyCalls)
	}
}

func TestEnsureRepositoryAppliesLifecyclePolicy(t *testing.T) {
	fake := &fakeECR{describeErr: &types.RepositoryNotFoundException{}}
	policy := `{"rules":[]}`
	c := newTestClient(fake, ECRConfig{CreateRepo: true, LifecyclePolicy: policy})

	if err := c.EnsureRepository(context.Background(), "team/app"); err != nil {
		t.Fatalf("EnsureRepository returned error: %v", err)
	}
	if fake.policyCalls != 1 {
		t.Fatalf("expected one lifecycle policy call, got %d", fake.policyCalls)
	}
	if fake.lastPolicy != policy {
		t.Fatalf("expected policy %q, got %q", policy, fake.lastPolicy)
	}
}

func TestBasicAuthDecodesToken(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("AWS:secretpassword"))
	fake := &fakeECR{token: token}
	c := newTestClient(fake, ECRConfig{})

	user, pass, err := c.BasicAuth(context.Background())
	if err != nil {
		t.Fatalf("BasicAuth returned error: %v", err)
	}
	if user != "AWS" || pass != "secretpassword" {
		t.Fatalf("unexpected credentials %q:%q", user, pass)
	}
}

func TestBasicAuthEmptyData(t *testing.T) {
	fake := &fakeECR{}
	c := newTestClient(fake, ECRConfig{})

	if _, _, err := c.BasicAuth(context.Background()); err == nil {
		t.Fatalf("expected error for empty authorization data")
	}
}

func TestBasicAuthMalformedToken(t *testing.T) {
	fake := &fakeECR{token: base64.StdEncoding.EncodeToString([]byte("no-separator"))}
	c := newTestClient(fake, ECRConfig{})

	if _, _, err := c.BasicAuth(context.Background()); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}
