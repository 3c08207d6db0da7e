package repository

import (
	"fmt"

	"github.com/core-coin/liqnotify/internal/config"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

// Open builds the registry backend selected by cfg.StoreDriver.
func Open(cfg *config.Config, logger *logger.Logger) (models.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverJSON:
		return NewJSONStore(cfg.SubscriptionsPath, logger)
	case config.StoreDriverPostgres:
		return NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
