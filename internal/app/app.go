// Package app wires the service together: storage, repositories,
// services, handlers, router and scheduler. The order of construction
// matters, each layer depends on the one before it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/config"
	"lexdesk.app/credits/internal/db/postgres"
	"lexdesk.app/credits/internal/features/admin"
	"lexdesk.app/credits/internal/features/consumption"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/purchases"
	"lexdesk.app/credits/internal/features/referrals"
	"lexdesk.app/credits/internal/features/tasks"
	"lexdesk.app/credits/internal/features/toolcost"
	"lexdesk.app/credits/internal/jobs"
	"lexdesk.app/credits/internal/realtime"
	"lexdesk.app/credits/internal/server"
	"lexdesk.app/credits/internal/server/middleware"
	"lexdesk.app/credits/internal/store/memory"
)

// App holds every long-lived component.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler
	Hub       *realtime.Hub
	Alerts    *realtime.AdminAlerts
	DB        *pgxpool.Pool // nil with the memory driver

	Ledger      *ledger.Service
	Catalog     *toolcost.Catalog
	Consumption *consumption.Service

	limiters []*middleware.RateLimiter
}

// stores is the set of feature stores for one storage driver.
type stores struct {
	ledger    ledger.Store
	tools     toolcost.Loader
	toolSeed  toolcost.Writer
	purchases purchases.Store
	referrals referrals.Store
	tasks     tasks.Store
	health    func(r *http.Request) error
}

// New builds the application.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// === 1. Storage ===
	st, err := a.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ToolCostsFile != "" {
		if err := toolcost.SeedFile(ctx, cfg.ToolCostsFile, st.toolSeed); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed tool costs: %w", err)
		}
	}

	// === 2. Realtime ===
	a.Hub = realtime.NewHub(cfg.RealtimeBuffer)
	if cfg.TelegramAlertsEnabled() {
		bot, err := realtime.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			log.WithError(err).Warn("Telegram alerts disabled")
		} else {
			a.Alerts = realtime.NewAdminAlerts(a.Hub, bot, cfg.TelegramAlertChatID)
		}
	}

	// === 3. Services ===
	a.Ledger = ledger.NewService(st.ledger, a.Hub, cfg.TransactionsMaxLimit)
	a.Catalog = toolcost.NewCatalog(st.tools)
	if err := a.Catalog.Refresh(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load tool costs: %w", err)
	}
	a.Consumption = consumption.NewService(a.Catalog, a.Ledger, func(toolType string) string {
		if e, ok := a.Catalog.Lookup(toolType); ok {
			return e.DisplayName()
		}
		return toolType
	})
	adminService := admin.NewService(a.Ledger)
	purchaseService := purchases.NewService(st.purchases, a.Ledger, cfg.FirstPurchaseBonus)
	referralService := referrals.NewService(st.referrals, a.Ledger, referrals.Awards{
		Referrer: cfg.ReferralReferrerCredits,
		Referred: cfg.ReferralReferredCredits,
	})
	taskService := tasks.NewService(st.tasks, a.Ledger)

	// === 4. Handlers ===
	handlers := server.Handlers{
		Ledger:      ledger.NewHandler(a.Ledger),
		ToolCosts:   toolcost.NewHandler(a.Catalog),
		Consumption: consumption.NewHandler(a.Consumption),
		Admin:       admin.NewHandler(adminService),
		Purchases:   purchases.NewHandler(purchaseService, cfg.WebhookSecret),
		Referrals:   referrals.NewHandler(referralService),
		Tasks:       tasks.NewHandler(taskService),
		Realtime:    realtime.NewWSHandler(a.Hub, cfg.CORSAllowedOrigins),
	}

	// === 5. Router ===
	requests := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	adminFailures := middleware.NewRateLimiter(cfg.AdminMaxFailures, time.Hour)
	a.limiters = append(a.limiters, requests, adminFailures)

	router := server.NewRouter(handlers, server.Guards{
		RateLimiter: requests,
		AdminKey:    admin.NewKeyVerifier(cfg.AdminKeyHash, adminFailures),
		CORSOrigins: cfg.CORSAllowedOrigins,
		Health:      st.health,
	})
	a.Server = server.New(cfg.HTTPAddr, router, cfg.HTTPShutdownTimeout)

	// === 6. Scheduler ===
	a.Scheduler = jobs.NewScheduler(a.Catalog, a.Ledger, jobs.Schedules{
		CatalogRefresh: cfg.ToolCostsRefresh,
		Streaks:        cfg.JobsStreakSchedule,
		Reconcile:      cfg.JobsReconcileSchedule,
	}, common.LoadLocation(cfg.AppTimezone))

	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		mem := memory.New()
		mem.SeedDefaults()
		log.Warn("Using in-memory storage, data is lost on restart")
		return stores{
			ledger:    mem,
			tools:     mem,
			toolSeed:  mem,
			purchases: mem,
			referrals: mem,
			tasks:     mem,
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return stores{}, fmt.Errorf("connect to database: %w", err)
	}
	a.DB = pool
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("migrations: %w", err)
	}

	toolRepo := toolcost.NewRepository(pool)
	return stores{
		ledger:    ledger.NewRepository(pool),
		tools:     toolRepo,
		toolSeed:  toolRepo,
		purchases: purchases.NewRepository(pool),
		referrals: referrals.NewRepository(pool),
		tasks:     tasks.NewRepository(pool),
		health: func(r *http.Request) error {
			return pool.Ping(r.Context())
		},
	}, nil
}

// Run starts background work and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	if a.Alerts != nil {
		go func() {
			defer middleware.RecoverGo("admin_alerts")
			a.Alerts.Run(ctx)
		}()
	}

	return a.Server.Start(ctx)
}

// Close releases everything New acquired.
func (a *App) Close() {
	if a.Hub != nil {
		a.Hub.Close()
	}
	for _, l := range a.limiters {
		l.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
