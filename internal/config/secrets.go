package config

import (
	"context"
	"os"
	"time"

	infisical "github.com/infisical/go-sdk"
	"go.uber.org/zap"
)

const (
	defaultInfisicalSite = "https://app.infisical.com"
	secretsTimeout       = 10 * time.Second
)

// SecretStore retrieves a secret value by key.
type SecretStore interface {
	Secret(key string) (string, error)
}

// LoadSecrets fills the bot token and price API key from Infisical when
// INFISICAL_CLIENT_ID and INFISICAL_CLIENT_SECRET are set. Values already
// present in cfg win.
func LoadSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return
	}
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	if projectID == "" {
		logger.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, secretsTimeout)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          envOr("INFISICAL_SITE_URL", defaultInfisicalSite),
		AutoTokenRefresh: false,
	})
	if _, err := client.Auth().UniversalAuthLogin(clientID, clientSecret); err != nil {
		logger.Error("infisical auth failed", zap.Error(err))
		return
	}

	store := &infisicalStore{
		client:      client,
		projectID:   projectID,
		environment: envOr("INFISICAL_ENV", "prod"),
	}
	applySecrets(cfg, store, logger)
}

func applySecrets(cfg *Config, store SecretStore, logger *zap.Logger) {
	secrets := []struct {
		key    string
		target *string
	}{
		{"TELEGRAM_BOT_API", &cfg.TelegramToken},
		{"COINGECKO_API_KEY", &cfg.PriceAPIKey},
	}

	for _, s := range secrets {
		if *s.target != "" {
			continue
		}
		value, err := store.Secret(s.key)
		if err != nil {
			logger.Warn("failed to retrieve secret", zap.String("key", s.key), zap.Error(err))
			continue
		}
		*s.target = value
		logger.Info("loaded secret", zap.String("key", s.key))
	}
}

type infisicalStore struct {
	client      infisical.InfisicalClientInterface
	projectID   string
	environment string
}

func (s *infisicalStore) Secret(key string) (string, error) {
	secret, err := s.client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
		SecretKey:   key,
		Environment: s.environment,
		ProjectID:   s.projectID,
		SecretPath:  "/",
	})
	if err != nil {
		return "", err
	}
	return secret.SecretValue, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
