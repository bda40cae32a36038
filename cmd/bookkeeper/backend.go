package main

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/config"
	"github.com/ssraminder/financial-dashboard/internal/handler"
	"github.com/ssraminder/financial-dashboard/internal/infra/memstore"
	"github.com/ssraminder/financial-dashboard/internal/infra/resilience"
	"github.com/ssraminder/financial-dashboard/internal/infra/supabase"
	"github.com/ssraminder/financial-dashboard/internal/port"
)

// backend is the store selected by flags and configuration.
type backend struct {
	store  port.LedgerStore
	pinger handler.Pinger

	// mem and dataFile are set when the store is in memory and should be
	// written back on shutdown.
	mem      *memstore.Store
	dataFile string
}

// loadConfig applies the dotenv file and flag overrides.
func loadConfig(flags *rootFlags) *config.Config {
	_ = config.LoadDotEnv(flags.envFile)
	cfg := config.Load()
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg
}

func openBackend(cfg *config.Config, flags *rootFlags, logger *zap.Logger) (*backend, error) {
	switch {
	case flags.dataFile != "":
		ds, err := memstore.LoadDataset(flags.dataFile)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		logger.Info("using in-memory store", zap.String("data_file", flags.dataFile))
		mem := memstore.New(ds)
		return &backend{store: mem, mem: mem, dataFile: flags.dataFile}, nil

	case flags.demo:
		logger.Info("using in-memory store with demo dataset")
		return &backend{store: memstore.New(memstore.Demo())}, nil

	case cfg.SupabaseURL != "":
		if cfg.SupabaseServiceKey == "" {
			return nil, errors.New("SUPABASE_SERVICE_ROLE_KEY is required with SUPABASE_URL")
		}
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		)
		return &backend{store: client, pinger: client}, nil
	}
	return nil, errors.New("no backend configured: set SUPABASE_URL, or pass --demo or --data")
}

// persist writes an in-memory store back to its data file.
func (b *backend) persist(logger *zap.Logger) {
	if b.mem == nil || b.dataFile == "" {
		return
	}
	if err := memstore.SaveDataset(b.dataFile, b.mem.Snapshot()); err != nil {
		logger.Error("failed to save dataset", zap.String("data_file", b.dataFile), zap.Error(err))
		return
	}
	logger.Info("dataset saved", zap.String("data_file", b.dataFile))
}
