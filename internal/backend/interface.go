package backend

import (
	"context"

	"budgettable/internal/exchange"
)

// CleanupFunc releases resources held by an exporter.
type CleanupFunc func() error

// Result contains the exporter instance and optional cleanup function
type Result struct {
	Exporter exchange.Exporter
	Cleanup  CleanupFunc
}

// Factory creates exchange exporters based on configuration
type Factory interface {
	CreateExporter(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for exporter creation
type Config struct {
	Type Type

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// Type represents the exporter backend
type Type string

const (
	MemoryBackend Type = "memory"
	SheetsBackend Type = "sheets"
)

// IsValid reports whether t names a known backend.
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SheetsBackend:
		return true
	}
	return false
}

func (t Type) String() string {
	return string(t)
}
