// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	chatcore "github.com/dalemusser/studychat/internal/app/chat"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for StudyChat.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STUDYCHAT_MONGO_URI, STUDYCHAT_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "studychat", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "studychat-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Attachment storage
	{Name: "storage_local_path", Default: "./uploads/attachments", Desc: "Local storage path for uploaded attachments"},
	{Name: "storage_local_url", Default: "/files/attachments", Desc: "URL prefix for serving local attachments"},

	// Chat tuning
	{Name: "typing_ttl", Default: "3s", Desc: "Typing indicator lifetime without a fresh signal (e.g., 3s)"},
	{Name: "subscriber_buffer", Default: chatcore.DefaultSubscriberBuffer, Desc: "Per-subscriber event channel capacity"},
	{Name: "typing_rate_limit", Default: chatcore.DefaultTypingRateLimit, Desc: "Max typing signals per user per group per second"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STUDYCHAT_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYCHAT", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),

		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		TypingTTL:        appValues.Duration("typing_ttl", chatcore.DefaultTypingTTL),
		SubscriberBuffer: appValues.Int("subscriber_buffer"),
		TypingRateLimit:  appValues.Int("typing_rate_limit"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// StudyChat validates the MongoDB URI format to catch configuration errors
// early, before attempting to connect, and rejects chat tuning values that
// would make the system silently misbehave.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.TypingTTL <= 0 {
		return fmt.Errorf("typing_ttl must be positive, got %s", appCfg.TypingTTL)
	}
	if appCfg.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be at least 1, got %d", appCfg.SubscriberBuffer)
	}
	if appCfg.TypingRateLimit < 1 {
		return fmt.Errorf("typing_rate_limit must be at least 1, got %d", appCfg.TypingRateLimit)
	}

	return nil
}
