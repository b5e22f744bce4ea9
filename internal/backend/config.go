package backend

import (
	"fmt"

	"budgettable/internal/config"
)

// FromAppConfig converts the application config to exporter config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.ExchangeBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid exchange backend in config: %s", appConfig.ExchangeBackend)
	}

	return Config{
		Type:                t,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleExchangeSheetName,
	}, nil
}
