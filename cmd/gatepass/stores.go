package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrandonDHaskell/gatepass/internal/config"
	"github.com/BrandonDHaskell/gatepass/internal/db"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/memory"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/postgres"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/sqlite"
)

type stores struct {
	tokens store.TokenStore
	scans  store.ScanLogStore
	gates  store.GateStore
	health store.Pinger
	close  func()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store; tokens are lost on restart")
		tokens := memory.NewTokenStore()
		return stores{
			tokens: tokens,
			scans:  memory.NewScanLogStore(),
			gates:  memory.NewGateStore(),
			health: tokens,
			close:  func() {},
		}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return stores{}, fmt.Errorf("postgres pool: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		tokens := postgres.NewTokenStore(pool)
		logger.Info("postgres store ready")
		return stores{
			tokens: tokens,
			scans:  postgres.NewScanLogStore(pool),
			gates:  postgres.NewGateStore(pool),
			health: tokens,
			close:  pool.Close,
		}, nil

	default:
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.Store.SQLitePath, Env: cfg.Env})
		if err != nil {
			return stores{}, err
		}
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{}); err != nil {
				_ = sqlDB.Close()
				return stores{}, err
			}
			logger.Info("dev token seeded", "token_id", db.DevTokenID)
		}

		writer := db.NewWorker(sqlDB)
		tokens := sqlite.NewTokenStore(sqlDB, writer)
		logger.Info("sqlite store ready", "path", cfg.Store.SQLitePath)
		return stores{
			tokens: tokens,
			scans:  sqlite.NewScanLogStore(sqlDB, writer),
			gates:  sqlite.NewGateStore(sqlDB, writer),
			health: tokens,
			close: func() {
				writer.Close()
				_ = sqlDB.Close()
			},
		}, nil
	}
}
