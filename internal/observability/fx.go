package observability

import (
	"os"
	"strings"

	"github.com/paygrid/disburse/internal/config"
	"github.com/paygrid/disburse/internal/observability/logger"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	debug := strings.EqualFold(cfg.Environment, "development")
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               os.Getenv("LOG_LEVEL"),
		Format:              os.Getenv("LOG_FORMAT"),
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}
