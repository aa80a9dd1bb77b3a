package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/greenside-app/greenside/internal/auth"
	"github.com/greenside-app/greenside/internal/config"
	"github.com/greenside-app/greenside/internal/dispute"
	"github.com/greenside-app/greenside/internal/funding"
	"github.com/greenside-app/greenside/internal/identity"
	"github.com/greenside-app/greenside/internal/infra"
	"github.com/greenside-app/greenside/internal/ledger"
	"github.com/greenside-app/greenside/internal/middleware"
	"github.com/greenside-app/greenside/internal/notification"
	"github.com/greenside-app/greenside/internal/wager"
	"github.com/greenside-app/greenside/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a
// database the stack falls back to in-memory stores; Setup rejects that
// outside of dev.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	tracker := infra.NewCheckoutTracker(d.Logger, d.Cfg.TxWarnAfter)

	var ledgerBackend ledger.Ledger
	var wagerStore wager.Store
	var disputeStore dispute.Store
	var identityRepo identity.Repository
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB, tracker)
		wagerStore = wager.NewPostgresStore(d.DB, tracker)
		disputeStore = dispute.NewPostgresStore(d.DB, tracker)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		wagerStore = wager.NewMemoryStore(ledgerBackend)
		identityRepo = identity.NewMemoryRepository()
		disputeStore = dispute.NewMemoryStore(ledgerBackend, identityRepo)
	}

	var emitter notification.Emitter
	if d.Cache != nil {
		emitter = notification.NewRedisEmitter(d.Cache, d.Logger)
	} else {
		emitter = notification.NewLoggerEmitter(d.Logger)
	}

	identitySvc := identity.NewService(identityRepo, ledgerBackend)
	authSvc := auth.NewService(d.Cfg)
	wagerSvc := wager.NewService(wagerStore, emitter, d.Logger)
	disputeSvc := dispute.NewService(disputeStore, wagerStore, identityRepo, emitter, d.Logger)
	walletSvc := wallet.NewService(ledgerBackend)
	fundingSvc := funding.NewService(ledgerBackend, nil)

	authHandler := auth.NewHandler(identitySvc, authSvc)
	wagerHandler := wager.NewHandler(wagerSvc)
	disputeHandler := dispute.NewHandler(disputeSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	fundingHandler := funding.NewHandler(fundingSvc)

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
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes get user-attributed audit logs on top of the plain
	// fiber access log.
	jwtmw := middleware.JWTAuth(authSvc)
	protected := api.Group("", jwtmw, middleware.Audit(d.Logger))
	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		user, err := identitySvc.Get(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":         user.ID,
			"username":        user.Username,
			"email":           user.Email,
			"is_judge":        user.IsJudge,
			"judge_rating":    user.JudgeRating,
			"disputes_judged": user.DisputesJudged,
			"created_at":      user.CreatedAt,
			"last_login":      user.LastLogin,
		})
	})
	RegisterWalletRoutes(protected, walletHandler)
	RegisterWagerRoutes(protected, wagerHandler)
	RegisterDisputeRoutes(protected, disputeHandler)
	RegisterFundingRoutes(protected, fundingHandler)

	return nil
}
