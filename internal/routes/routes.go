package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/config"
	"github.com/congo-pay/sharevault/internal/custody"
	"github.com/congo-pay/sharevault/internal/events"
	"github.com/congo-pay/sharevault/internal/funding"
	"github.com/congo-pay/sharevault/internal/ledger"
	"github.com/congo-pay/sharevault/internal/middleware"
	"github.com/congo-pay/sharevault/internal/pool"
	"github.com/congo-pay/sharevault/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if !common.IsHexAddress(d.Cfg.VaultAddress) {
		return fmt.Errorf("invalid VAULT_ADDRESS %q", d.Cfg.VaultAddress)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	registry, err := asset.ParseRegistry(d.Cfg.NativeSymbol, d.Cfg.Assets)
	if err != nil {
		return err
	}
	basis, err := vault.ParseNativeBasis(d.Cfg.NativePreviewBasis)
	if err != nil {
		return err
	}

	var (
		ledgerBackend ledger.Ledger
		poolStore     pool.Store
		custodyStore  custody.Store
	)
	if d.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pgLedger := ledger.NewPostgresLedger(d.DB)
		if err := pgLedger.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ledger schema: %w", err)
		}
		pgPools := pool.NewPostgresStore(d.DB)
		if err := pgPools.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("pool schema: %w", err)
		}
		pgCustody := custody.NewPostgresStore(d.DB)
		if err := pgCustody.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("custody schema: %w", err)
		}
		ledgerBackend, poolStore, custodyStore = pgLedger, pgPools, pgCustody
	} else {
		ledgerBackend = ledger.NewInMemory()
		poolStore = pool.NewMemoryStore()
		custodyStore = custody.NewMemoryStore()
	}

	emitter := events.Fanout{events.NewLogEmitter(d.Logger)}
	if d.Cache != nil {
		emitter = append(emitter, events.NewRedisStream(d.Cache, d.Cfg.EventStream, 0))
	}

	chain := custody.NewChainWithStore(common.HexToAddress(d.Cfg.VaultAddress), custodyStore)
	vaultSvc, err := vault.NewService(vault.Deps{
		Pools:     poolStore,
		Ledger:    ledgerBackend,
		Custodian: chain,
		Emitter:   emitter,
		Logger:    d.Logger,
	}, vault.Options{NativeBasis: basis})
	if err != nil {
		return err
	}
	if d.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		repaired, err := vaultSvc.Reconcile(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("reconcile pools: %w", err)
		}
		if len(repaired) > 0 {
			d.Logger.Warn("pools repaired at startup", slog.Int("count", len(repaired)))
		}
	}
	vaultHandler := vault.NewHandler(vaultSvc, registry)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterVaultReadRoutes(api, vaultHandler)

	// Protected routes
	protected := []fiber.Handler{
		middleware.BearerAuth(d.Cfg.JWTSecret),
		middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMinute),
	}
	if d.Cache != nil {
		protected = append(protected, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	authed := api.Group("", protected...)
	RegisterVaultWriteRoutes(authed, vaultHandler)

	if d.Cfg.IsDevelopment() {
		fundingSvc, err := funding.NewService(chain)
		if err != nil {
			return err
		}
		RegisterFundingRoutes(authed, funding.NewHandler(fundingSvc))
	}

	return nil
}
