package notify

import (
	"go.uber.org/fx"

	"github.com/paygrid/disburse/internal/config"
)

var Module = fx.Module("notify",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Notifier {
	if cfg.SMTPHost == "" || cfg.NotifyTo == "" {
		return &NoOpNotifier{}
	}
	return NewSMTP(SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.NotifyTo,
	})
}
