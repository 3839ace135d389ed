package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/leadgate-ai/leadgate/internal/config"
	"github.com/leadgate-ai/leadgate/internal/routing"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Repository:     "memory",
		PolicyCacheTTL: time.Second,
		LLMProvider:    "bedrock",
		EmailProvider:  "stub",
		LeadsTable:     "leads",
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = ""
	if client := BuildRedisClient(context.Background(), cfg, nil, false); client != nil {
		t.Fatalf("expected nil client without an address")
	}
}

func TestBuildPolicyWithoutRedis(t *testing.T) {
	store, provider := BuildPolicy(nil, testConfig(), nil)
	if store != nil {
		t.Fatalf("expected nil store without redis")
	}
	if provider == nil {
		t.Fatalf("expected a provider")
	}
	got := provider.Active(context.Background())
	want := routing.DefaultConfig()
	if got.RolloutPercent != want.RolloutPercent || got.Thresholds != want.Thresholds {
		t.Fatalf("expected default policy, got %+v", got)
	}
}

func TestBuildLeadsRepositoryMemory(t *testing.T) {
	repo, cleanup, err := BuildLeadsRepository(context.Background(), testConfig(), aws.Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if repo == nil {
		t.Fatalf("expected a repository")
	}
}

func TestBuildLeadsRepositoryUnknown(t *testing.T) {
	cfg := testConfig()
	cfg.Repository = "etcd"
	if _, _, err := BuildLeadsRepository(context.Background(), cfg, aws.Config{}, nil); err == nil {
		t.Fatalf("expected error for unknown repository")
	}
}

func TestBuildLeadsRepositoryPostgresRequiresURL(t *testing.T) {
	cfg := testConfig()
	cfg.Repository = "postgres"
	cfg.DatabaseURL = ""
	if _, _, err := BuildLeadsRepository(context.Background(), cfg, aws.Config{}, nil); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestBuildClassifierUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "markov-chain"
	if _, _, err := BuildClassifier(context.Background(), cfg, aws.Config{}, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBuildClassifierGeminiRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "gemini"
	cfg.GeminiAPIKey = ""
	if _, _, err := BuildClassifier(context.Background(), cfg, aws.Config{}, nil); err == nil {
		t.Fatalf("expected error without an API key")
	}
}

func TestBuildDelivererStub(t *testing.T) {
	svc, err := BuildDeliverer(testConfig(), aws.Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatalf("expected a deliverer")
	}
}

func TestBuildDelivererUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.EmailProvider = "pigeon"
	if _, err := BuildDeliverer(cfg, aws.Config{}, nil); err != nil {
		return
	}
	t.Fatalf("expected error for unknown email provider")
}

func TestBuildArchiveStoreDisabled(t *testing.T) {
	store := BuildArchiveStore(testConfig(), aws.Config{}, nil)
	if store.Enabled() {
		t.Fatalf("expected archive disabled without a bucket")
	}
}
