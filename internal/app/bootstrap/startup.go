// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// Attachment uploads need the local directory before the first Put.
	if err := os.MkdirAll(appCfg.StorageLocalPath, 0o755); err != nil {
		return fmt.Errorf("create storage directory %s: %w", appCfg.StorageLocalPath, err)
	}
	logger.Info("attachment storage ready",
		zap.String("path", appCfg.StorageLocalPath))
	return nil
}
