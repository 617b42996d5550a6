package di

import (
	"time"

	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/application/ports"
	"github.com/vinayh/lifecal-web/application/services"
	"github.com/vinayh/lifecal-web/infrastructure/config"
	"github.com/vinayh/lifecal-web/infrastructure/identity"
	"github.com/vinayh/lifecal-web/infrastructure/profilestore"
	"github.com/vinayh/lifecal-web/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics()
}

// ProvideAuthProvider creates the identity provider client
func ProvideAuthProvider(cfg *config.Config, logger *zap.Logger) ports.AuthProvider {
	return identity.NewClient(identity.Config{
		APIKey:   cfg.IdentityAPIKey,
		BaseURL:  cfg.IdentityBaseURL,
		TokenURL: cfg.IdentityTokenURL,
	}, nil, logger)
}

// ProvideProfileStore creates the profile store client
func ProvideProfileStore(cfg *config.Config, logger *zap.Logger) ports.ProfileStore {
	return profilestore.NewClient(cfg.ProfileStoreURL, nil, logger)
}

// ProvideSessionManager creates the session state manager
func ProvideSessionManager(
	cfg *config.Config,
	provider ports.AuthProvider,
	store ports.ProfileStore,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *services.SessionManager {
	ttl := time.Duration(cfg.ProfileTTLSeconds) * time.Second
	return services.NewSessionManager(provider, store, ttl, logger, metrics)
}
