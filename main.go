package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"listing-leads/api"
	"listing-leads/config"
	"listing-leads/enrich"
	"listing-leads/models"
	"listing-leads/services"
	"listing-leads/storage"
	"listing-leads/utils"
)

// leadStore is what both PostgresStore and MemoryStore provide.
type leadStore interface {
	services.LeadStore
	storage.LeadReader
	storage.RawWriter
}

func main() {
	os.Exit(run())
}

func run() int {
	full := flag.Bool("full", false, "rebuild from the first raw record instead of the watermark")
	tenantsFlag := flag.String("tenants", "", "comma separated tenant ids (overrides TENANTS)")
	seedPath := flag.String("seed", "", "JSON file of raw records to insert before running")
	memory := flag.Bool("memory", false, "use an in-process store instead of PostgreSQL")
	serve := flag.Bool("serve", false, "serve the read API after the runs")
	flag.Parse()

	cfg := config.Load()
	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("[main] logger: %v", err)
		return 1
	}
	defer logger.Sync()

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Error("Failed to load rules: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tenants := cfg.Tenants
	if *tenantsFlag != "" {
		tenants = strings.Split(*tenantsFlag, ",")
	}

	logger.Info("=== Lead pipeline starting ===")
	logger.Info("Config: tenants %v | concurrency %d | full %t | rules %s | resolver %s",
		tenants, cfg.MaxConcurrency, *full, rules.Version, rules.Resolver.Mode)

	var store leadStore
	if *memory {
		store = storage.NewMemoryStore()
	} else {
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
		pg, err := storage.NewPostgresStore(ctx, cfg.DSN(), cfg.PostgresMaxConns, retry)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return 1
		}
		defer pg.Close()
		store = pg
	}

	var locker services.TenantLocker = storage.NewLocalLocker()
	var cache storage.KVStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		locker = storage.NewRedisLocker(rdb, time.Duration(cfg.LockTTLSec)*time.Second)
		cache = storage.NewRedisKVStore(rdb)
	}

	var opts []services.PipelineOption
	if cfg.ImageScoreURL != "" {
		client := enrich.NewImageScoreClient(cfg.ImageScoreURL,
			time.Duration(cfg.ImageScoreTimeoutMs)*time.Millisecond, cfg.MaxRetries,
			cache, time.Duration(cfg.ImageScoreCacheSec)*time.Second, logger)
		opts = append(opts, services.WithImageScorer(client))
	}
	if cfg.DiscardCSVPath != "" {
		csvWriter, err := storage.NewDiscardCSVWriter(cfg.DiscardCSVPath)
		if err != nil {
			logger.Error("Failed to open discard CSV: %v", err)
			return 1
		}
		defer csvWriter.Close()
		opts = append(opts, services.WithDiscardSink(csvWriter))
	}

	if *seedPath != "" {
		if err := seed(ctx, store, *seedPath); err != nil {
			logger.Error("Seeding failed: %v", err)
			return 1
		}
		logger.Info("Raw records from %s inserted", *seedPath)
	}

	pipeline := services.NewPipeline(store, locker, rules, logger, opts...)
	failed := runTenants(ctx, pipeline, tenants, *full, cfg.MaxConcurrency, logger)

	if cfg.ExportXLSXPath != "" {
		var exporter storage.LeadExporter = storage.NewXLSXExporter(cfg.ExportXLSXPath)
		for _, tenant := range tenants {
			leads, err := store.ListLeads(ctx, tenant, true)
			if err == nil {
				err = exporter.Export(tenant, leads)
			}
			if err != nil {
				logger.Error("XLSX export for %s failed: %v", tenant, err)
				continue
			}
			logger.Info("Exported %d contactable leads for %s to %s", len(leads), tenant, cfg.ExportXLSXPath)
		}
	}

	if *serve {
		if err := serveAPI(ctx, cfg.HTTPAddr, api.NewServer(store, logger), logger); err != nil {
			logger.Error("API server: %v", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func seed(ctx context.Context, store storage.RawWriter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	recs, err := storage.ReadRawJSON(f)
	if err != nil {
		return err
	}
	return store.InsertRaw(ctx, recs)
}

// runTenants processes tenants in parallel, one run per tenant, and prints their reports.
func runTenants(ctx context.Context, p *services.Pipeline, tenants []string, full bool, concurrency int, logger *utils.Logger) int {
	if len(tenants) == 0 {
		logger.Warn("No tenants configured; set TENANTS or -tenants")
		return 0
	}

	pool := utils.NewWorkerPool(concurrency, 0)
	var mu sync.Mutex
	reports := make(map[string]*models.RunReport, len(tenants))

	for _, t := range tenants {
		tenant := strings.TrimSpace(t)
		if tenant == "" {
			continue
		}
		pool.Submit(tenant, func() error {
			r, err := p.RunTenant(ctx, tenant, full)
			if err != nil {
				return err
			}
			mu.Lock()
			reports[tenant] = r
			mu.Unlock()
			return nil
		})
	}
	failures := pool.Wait()

	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		services.PrintReport(os.Stdout, reports[name])
	}
	for tenant, err := range failures {
		if errors.Is(err, storage.ErrTenantLocked) {
			logger.Warn("Tenant %s skipped: %v", tenant, err)
			continue
		}
		logger.Error("Tenant %s failed: %v", tenant, err)
	}

	fmt.Printf("  Done. %d tenant(s) processed, %d failed\n\n", len(reports), len(failures))
	return len(failures)
}

func serveAPI(ctx context.Context, addr string, srv *api.Server, logger *utils.Logger) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
