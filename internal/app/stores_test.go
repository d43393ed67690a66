package app

import (
	"context"
	"testing"

	"madrasa/internal/config"
)

func TestOpenStoresMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.StoreDriver = driver
			cfg.DatabaseURL = ":memory:"
			cfg.PersistPending = false

			s, err := OpenStores(ctx, cfg, true)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer s.Close()
			if !s.Healthy(ctx) {
				t.Fatal("not healthy")
			}
			if s.Engine(cfg).PersistsPending() {
				t.Fatal("persist_pending not applied")
			}
			if (s.DB() == nil) != (driver == "memory") {
				t.Fatalf("db handle for %s: %v", driver, s.DB())
			}
		})
	}
}

func TestOpenBackplaneWithoutRedis(t *testing.T) {
	cfg := config.Defaults()
	cfg.RedisAddr = ""

	b := OpenBackplane(context.Background(), cfg)
	defer b.Close()
	if b.Redis != nil || b.Reports != nil {
		t.Fatal("expected redis side disabled")
	}
	if !b.InProcess() {
		t.Fatal("expected in-memory queue fallback")
	}
	if b.Limiter == nil {
		t.Fatal("expected memory limiter")
	}
	if b.Events() != nil {
		t.Fatal("no report cache, so saves should not be announced in-process")
	}
	if !b.Healthy(context.Background()) {
		t.Fatal("process without redis should be healthy")
	}
}
