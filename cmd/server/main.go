package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"karatpos/internal/cache"
	"karatpos/internal/config"
	"karatpos/internal/httpapi"
	"karatpos/internal/quote"
	"karatpos/internal/service"
	"karatpos/internal/store"
	"karatpos/internal/store/memory"
	mongostore "karatpos/internal/store/mongo"
	pgstore "karatpos/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store unavailable: %v; refusing to start with in-memory fallback", err)
	}
	closers = append(closers, repo.Close)

	var rateCache cache.RateCache = cache.NoopRateCache{}
	var carts cache.CartStore = cache.NewMemoryCartStore()
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop rate cache and in-process carts", err)
			_ = redisCache.Close()
		} else {
			rateCache = redisCache
			carts = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	engine := quote.NewEngine(rateCache, cfg.RateCacheTTL, cfg.StrictPricing)
	svc := service.New(repo, engine, carts, service.Options{
		Retry:   store.DefaultRetryPolicy(cfg.TxMaxAttempts),
		CartTTL: cfg.CartTTL,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, cfg.ManagerPIN, accounts(cfg))
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("karatpos listening on %s (strict pricing: %t)", cfg.Address(), cfg.StrictPricing)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// openStore prefers Postgres, then Mongo, then the seeded in-memory store.
// A configured backend that cannot be reached is fatal.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		log.Println("store: postgres")
		return pg, nil
	case cfg.MongoURI != "":
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		if err := mg.Migrate(ctx); err != nil {
			_ = mg.Close()
			return nil, fmt.Errorf("mongo migrate: %w", err)
		}
		log.Println("store: mongo")
		return mg, nil
	}
	log.Println("store: in-memory")
	return memory.NewSeeded(), nil
}

func accounts(cfg config.Config) []httpapi.Account {
	out := []httpapi.Account{{Username: "admin", Password: cfg.AdminPassword, Role: httpapi.RoleAdmin}}
	if cfg.SalesPassword != "" {
		out = append(out, httpapi.Account{Username: "sales", Password: cfg.SalesPassword, Role: httpapi.RoleSales})
	}
	return out
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	if cfg.SalesPassword != "" && len(cfg.SalesPassword) < 8 {
		return fmt.Errorf("SALES_PASSWORD must be at least 8 characters when set")
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "696969": true,
		"101010": true, "159753": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return fmt.Errorf("PIN must be digits only")
		}
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
