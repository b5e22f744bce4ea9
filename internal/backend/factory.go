// Package backend selects the exchange exporter the worker writes to.
package backend

import (
	"context"
	"fmt"

	gexchange "budgettable/internal/exchange/google"
	"budgettable/internal/exchange/memory"
	"budgettable/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new exporter factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentExchange)}
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid exchange backend: %s", config.Type)
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsExporter(ctx, config)
	default:
		return f.createMemoryExporter()
	}
}

func (f *DefaultFactory) createSheetsExporter(ctx context.Context, config Config) (*Result, error) {
	client, err := gexchange.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare exchange sheet: %w", err)
	}

	f.logger.Info("Initialized Google Sheets exporter",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &Result{Exporter: client}, nil
}

func (f *DefaultFactory) createMemoryExporter() (*Result, error) {
	store := memory.New()
	f.logger.Info("Initialized in-memory exporter")

	return &Result{
		Exporter: store,
		Cleanup: func() error {
			f.logger.Info("Discarding in-memory exchange entries", "count", store.Len())
			return nil
		},
	}, nil
}
