package main

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/crateclash/battle-backend/internal/accounts"
	"github.com/crateclash/battle-backend/internal/battle"
	"github.com/crateclash/battle-backend/internal/bots"
	"github.com/crateclash/battle-backend/internal/catalog"
	"github.com/crateclash/battle-backend/internal/config"
	"github.com/crateclash/battle-backend/internal/engine"
	"github.com/crateclash/battle-backend/internal/httpapi"
	"github.com/crateclash/battle-backend/internal/registry"
	"github.com/crateclash/battle-backend/internal/store"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.DevLogging {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		st  store.Store
		acc accounts.Service
		cat catalog.Provider
	)
	if cfg.DatabaseDSN != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("open store", zap.Error(err))
		}
		st = pg
		acc = accounts.NewLedger(pg.DB())
		cat = catalog.NewDB(pg.DB())
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		acc = accounts.NewMemory()
		cat = demoCatalog()
		log.Warn("no DATABASE_DSN set, using in-memory store and demo catalog")
	}

	reg := registry.New(ctx, registry.Config{
		Battle: battle.Config{
			Countdown:       cfg.Countdown,
			DrawTimeout:     cfg.DrawTimeout,
			MinParticipants: cfg.MinParticipants,
			WriteAttempts:   cfg.WriteAttempts,
			WriteBackoff:    cfg.WriteBackoff,
		},
		RetireGrace: cfg.RetireGrace,
		DefaultTTL:  cfg.LobbyTTL,
	}, battle.Deps{
		Store:    st,
		Accounts: acc,
		Catalog:  cat,
		Rand:     battle.NewLockedRand(seed()),
		Logger:   log,
	})
	defer reg.Shutdown()

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(reg.Sweep),
	); err != nil {
		log.Fatal("schedule sweep", zap.Error(err))
	}
	sched.Start()
	defer sched.Shutdown()

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Registry: reg,
		Store:    st,
		Bots:     bots.New(battle.NewLockedRand(seed()), log),
		Logger:   log,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
}

// seed draws the RNG seed from the OS so restarts never replay a sequence.
func seed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// demoCatalog backs local development without a database.
func demoCatalog() *catalog.Static {
	cat := catalog.NewStatic()
	cat.Put("starter-crate", []engine.PoolEntry{
		{ItemID: "sticker", Rarity: "common", Value: 25, Weight: 70},
		{ItemID: "keychain", Rarity: "uncommon", Value: 120, Weight: 25},
		{ItemID: "figurine", Rarity: "rare", Value: 900, Weight: 5},
	})
	cat.Put("gold-crate", []engine.PoolEntry{
		{ItemID: "pin-set", Rarity: "common", Value: 150, Weight: 60},
		{ItemID: "plush", Rarity: "rare", Value: 1200, Weight: 30},
		{ItemID: "signed-print", Rarity: "legendary", Value: 15000, Weight: 10},
	})
	return cat
}
