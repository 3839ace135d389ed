// Package bootstrap wires configuration into runtime collaborators shared by
// the API server and the intake worker.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/leadgate-ai/leadgate/internal/archive"
	"github.com/leadgate-ai/leadgate/internal/classifier"
	appconfig "github.com/leadgate-ai/leadgate/internal/config"
	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/notify"
	"github.com/leadgate-ai/leadgate/internal/routing"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// staticPolicySource serves the built-in policy when no durable store is
// configured.
type staticPolicySource struct{}

func (staticPolicySource) Get(ctx context.Context) (routing.Config, error) {
	return routing.DefaultConfig(), nil
}

// BuildPolicy returns the policy store and TTL-cached provider. The store is
// nil without Redis; routing then runs on the built-in defaults.
func BuildPolicy(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) (*routing.Store, *routing.Provider) {
	if redisClient == nil {
		if logger != nil {
			logger.Warn("no redis configured, routing policy frozen at defaults")
		}
		return nil, routing.NewProvider(staticPolicySource{}, cfg.PolicyCacheTTL, logger)
	}
	store := routing.NewStore(redisClient)
	return store, routing.NewProvider(store, cfg.PolicyCacheTTL, logger)
}

// BuildLeadsRepository selects lead persistence from configuration. The
// returned cleanup closes the underlying pool and may be called on a nil
// error only.
func BuildLeadsRepository(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (leads.Repository, func(), error) {
	switch cfg.Repository {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, fmt.Errorf("bootstrap: DATABASE_URL required for postgres repository")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		return leads.NewPostgresRepository(pool), pool.Close, nil
	case "dynamodb":
		client := dynamodb.NewFromConfig(awsCfg)
		return leads.NewDynamoRepository(client, cfg.LeadsTable, logger), func() {}, nil
	case "memory":
		return leads.NewInMemoryRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown repository %q", cfg.Repository)
	}
}

// BuildClassifier assembles the LLM classifier with an optional fallback
// provider. The returned cleanup releases the Gemini client if one was
// created.
func BuildClassifier(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*classifier.Classifier, func(), error) {
	cleanup := func() {}

	var bedrock classifier.LLMClient
	bedrock = classifier.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))

	var gemini classifier.LLMClient
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := classifier.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		gemini = client
		cleanup = func() { _ = client.Close() }
	}

	switch cfg.LLMProvider {
	case "gemini":
		if gemini == nil {
			return nil, nil, fmt.Errorf("bootstrap: GEMINI_API_KEY required for gemini provider")
		}
		primary := classifier.NewFallbackLLMClient(gemini, bedrock, logger)
		return classifier.New(primary, cfg.GeminiModelID), cleanup, nil
	case "bedrock":
		primary := bedrock
		if gemini != nil {
			primary = classifier.NewFallbackLLMClient(bedrock, gemini, logger)
		}
		return classifier.New(primary, cfg.BedrockModelID), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
	}
}

// BuildDeliverer wires the outbound email path for routed leads.
func BuildDeliverer(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*notify.Service, error) {
	inboxes := notify.Inboxes{
		Support:     cfg.SupportInbox,
		AccountTeam: cfg.AccountTeamInbox,
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sg != nil {
			sender = sg
		}
	case "ses":
		if ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); ses != nil {
			sender = ses
		}
	case "stub":
		sender = notify.NewStubEmailSender(logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
	if sender == nil {
		if logger != nil {
			logger.Warn("email sender misconfigured, falling back to stub", "provider", cfg.EmailProvider)
		}
		sender = notify.NewStubEmailSender(logger)
	}
	return notify.NewService(sender, inboxes, logger), nil
}

// BuildArchiveStore returns the S3 audit archive, or a disabled no-op store
// when no bucket is configured.
func BuildArchiveStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *archive.Store {
	if strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return archive.NewStore(nil, "", logger)
	}
	return archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
}
