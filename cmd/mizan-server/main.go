package main

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mizan-app/mizan/server/internal/config"
	"github.com/mizan-app/mizan/server/internal/db"
	"github.com/mizan-app/mizan/server/internal/httpapi"
	"github.com/mizan-app/mizan/server/internal/zakat/crypto"
	"github.com/mizan-app/mizan/server/internal/zakat/service"
	"github.com/mizan-app/mizan/server/internal/zakat/store/memory"
	"github.com/mizan-app/mizan/server/internal/zakat/store/sqlite"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "mizan-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	recordStore := sqlite.NewRecordStore(conn, writer)
	ledgerStore := sqlite.NewLedgerStore(conn)

	// External collaborators.  The in-memory aggregator and static price
	// source stand in until the asset service and price feed are wired up.
	aggregator := memory.NewWealthAggregator()
	prices := &memory.StaticPriceSource{
		GoldPricePerGram:   mustDecimal(logger, "MIZAN_GOLD_PRICE_PER_GRAM", cfg.GoldPricePerGram),
		SilverPricePerGram: mustDecimal(logger, "MIZAN_SILVER_PRICE_PER_GRAM", cfg.SilverPricePerGram),
	}

	cipher := unlockCipher(logger, cfg)

	svc := service.NewLifecycleService(service.Deps{
		Records: recordStore,
		Trail:   ledgerStore,
		Wealth:  aggregator,
		Prices:  prices,
		Cipher:  cipher,
		Logger:  logger,
	})

	tracker := service.NewTracker(svc, service.TrackerConfig{
		Interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		Debounce: time.Duration(cfg.DebounceMillis) * time.Millisecond,
	}, logger)
	defer tracker.Stop()

	if cfg.Env == "dev" {
		seedDevAssets(logger, aggregator)
	}

	// Resume tracking for every DRAFT record that survived a restart.
	drafts, err := recordStore.ListRecordsByStatus(ctx, types.StatusDraft)
	if err != nil {
		logger.Fatalf("list draft records: %v", err)
	}
	for _, rec := range drafts {
		tracker.Track(context.Background(), rec.ID)
	}
	if len(drafts) > 0 {
		logger.Printf("tracking %d draft record(s)", len(drafts))
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    logger,
		Addr:      cfg.HTTPAddr,
		Lifecycle: svc,
		Tracker:   tracker,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// unlockCipher builds the reason cipher from MIZAN_UNLOCK_KEY_HEX.  Prod
// requires a key; dev generates an ephemeral one so old ledgers stay
// readable only within the process lifetime.
func unlockCipher(logger *log.Logger, cfg config.Config) crypto.ReasonCipher {
	if cfg.UnlockReasonKeyHex != "" {
		cipher, err := crypto.NewAEADCipherHex(cfg.UnlockReasonKeyHex)
		if err != nil {
			logger.Fatalf("MIZAN_UNLOCK_KEY_HEX: %v", err)
		}
		return cipher
	}

	if cfg.Env == "prod" {
		logger.Fatal("MIZAN_UNLOCK_KEY_HEX is required in prod")
	}

	key := make([]byte, 32)
	if _, err := cryptorand.Read(key); err != nil {
		logger.Fatalf("generate dev unlock key: %v", err)
	}
	logger.Printf("no MIZAN_UNLOCK_KEY_HEX set; using ephemeral dev key %s", hex.EncodeToString(key)[:8]+"…")

	cipher, err := crypto.NewAEADCipher(key)
	if err != nil {
		logger.Fatalf("dev unlock cipher: %v", err)
	}
	return cipher
}

func mustDecimal(logger *log.Logger, name, v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		logger.Fatalf("%s: %v", name, err)
	}
	return d
}

// seedDevAssets loads a handful of demo assets so the API is usable out of
// the box in dev mode.
func seedDevAssets(logger *log.Logger, agg *memory.WealthAggregator) {
	seed := []struct {
		id               string
		total, zakatable string
	}{
		{"cash-checking", "12000", "12000"},
		{"cash-savings", "30000", "30000"},
		{"gold-jewelry", "8500", "8500"},
		{"retirement-401k", "90000", "0"},
	}
	for _, s := range seed {
		agg.SetAsset(s.id, decimal.RequireFromString(s.total), decimal.RequireFromString(s.zakatable))
	}
	logger.Printf("dev mode: seeded %d demo assets", len(seed))
}
