// Package backend selects the ledger the worker mirrors invoices into.
package backend

import (
	"context"
	"fmt"

	"invoicer/internal/config"
	applog "invoicer/internal/log"
	"invoicer/internal/sheets"
	"invoicer/internal/sheets/google"
	"invoicer/internal/sheets/memory"
)

// Type names a ledger backend.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build a ledger.
type Config struct {
	Type Type

	Google google.Config
}

// FromAppConfig derives the ledger config. Without an explicit backend a
// configured spreadsheet selects sheets.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(cfg.LedgerBackend)
	if t == "" {
		t = MemoryBackend
		if cfg.GoogleSpreadsheetID != "" {
			t = SheetsBackend
		}
	}
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid ledger backend: %s", cfg.LedgerBackend)
	}

	return Config{
		Type: t,
		Google: google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleLedgerSheet,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		},
	}, nil
}

// Factory builds ledgers.
type Factory struct {
	logger *applog.Logger

	// overrides the Sheets client constructor in tests
	newGoogle func(ctx context.Context, cfg google.Config, logger *applog.Logger) (sheets.LedgerWriter, error)
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.Default(applog.ComponentLedger)
	}
	return &Factory{
		logger: logger,
		newGoogle: func(ctx context.Context, cfg google.Config, logger *applog.Logger) (sheets.LedgerWriter, error) {
			return google.New(ctx, cfg, logger)
		},
	}
}

// NewLedger returns the ledger for cfg.Type.
func (f *Factory) NewLedger(ctx context.Context, cfg Config) (sheets.LedgerWriter, error) {
	switch cfg.Type {
	case SheetsBackend:
		ledger, err := f.newGoogle(ctx, cfg.Google, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets ledger",
			"sheet", cfg.Google.SheetName)
		return ledger, nil
	case MemoryBackend:
		f.logger.InfoContext(ctx, "Initialized memory ledger")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Type)
	}
}
