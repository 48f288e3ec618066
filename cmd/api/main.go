// Command api runs the subscription backend: the HTTP surface and the
// lifecycle sweep in one process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/tradesignal/backend/modules/account"
	"github.com/tradesignal/backend/modules/billing"
	"github.com/tradesignal/backend/modules/quotes"
	"github.com/tradesignal/backend/pkg/clientip"
	"github.com/tradesignal/backend/pkg/config"
	"github.com/tradesignal/backend/pkg/gateway"
	"github.com/tradesignal/backend/pkg/httpserver"
	"github.com/tradesignal/backend/pkg/logger"
	"github.com/tradesignal/backend/pkg/pg"
	"github.com/tradesignal/backend/pkg/ratelimit"
	"github.com/tradesignal/backend/pkg/redis"
	"github.com/tradesignal/backend/pkg/requestid"
	"github.com/tradesignal/backend/pkg/response"
	"github.com/tradesignal/backend/pkg/scheduler"
	"github.com/tradesignal/backend/svc/auth"
	"github.com/tradesignal/backend/svc/catalog"
	"github.com/tradesignal/backend/svc/ledger"
	"github.com/tradesignal/backend/svc/lifecycle"
	"github.com/tradesignal/backend/svc/market"
	"github.com/tradesignal/backend/svc/notifier"
	"github.com/tradesignal/backend/svc/payment"
	"github.com/tradesignal/backend/svc/user"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	// PlansPath switches the plan catalog to a YAML file; empty means the
	// plans table.
	PlansPath string `env:"CATALOG_PLANS_PATH"`

	HTTP      httpserver.Config
	DB        pg.Config
	Redis     redis.Config
	Auth      auth.Config
	Gateway   gateway.Config
	Payment   payment.Config
	Market    market.Config
	Notifier  notifier.Config
	Lifecycle lifecycle.Config
	RateLimit ratelimit.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Environment, "tradesignal-api"),
		logger.WithContextExtractors(requestid.LogExtractor()),
	)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "api exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.DB, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	cache, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = cache.Close() }()

	users := user.NewService(user.NewPgStore(pool), user.WithLogger(log))

	tokens, err := auth.NewService(cfg.Auth, auth.NewPgStore(pool))
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}

	plans, err := planSource(cfg, pool)
	if err != nil {
		return fmt.Errorf("load plan catalog: %w", err)
	}

	ledgerSvc := ledger.NewService(ledger.NewPgStore(pool), plans, ledger.WithLogger(log))

	gw, err := gateway.New(cfg.Gateway)
	if err != nil {
		return fmt.Errorf("build gateway client: %w", err)
	}
	payments := payment.NewService(cfg.Payment, payment.NewPgStore(pool), plans,
		ledgerSvc, users, gw, payment.WithLogger(log))

	fetcher, err := market.NewHTTPFetcher(cfg.Market)
	if err != nil {
		return fmt.Errorf("build market fetcher: %w", err)
	}
	marketSvc := market.NewService(fetcher,
		market.WithCache(cache, cfg.Market.CacheTTL),
		market.WithLogger(log),
	)

	reminders, err := buildNotifier(cfg.Notifier, log)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}
	sweeper := lifecycle.NewSweeper(cfg.Lifecycle, ledgerSvc, users, reminders,
		lifecycle.WithLogger(log))

	sweep, err := scheduler.New("lifecycle-sweep", sweeper.Run,
		scheduler.WithInterval(cfg.Lifecycle.SweepInterval),
		scheduler.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("build sweep scheduler: %w", err)
	}

	limiterStore := ratelimit.NewMemoryStore()
	defer limiterStore.Close()
	limiter, err := ratelimit.NewLimiter(limiterStore, cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/ready", httpserver.HealthCheckHandler(ctx, log,
		pg.Healthcheck(pool), redis.Healthcheck(cache)))
	r.Mount("/account", account.NewHandler(users, tokens,
		account.WithLogger(log),
		account.WithRateLimit(credentialGuard(limiter, log))).Router())
	r.Mount("/billing", billing.NewHandler(plans, payments, ledgerSvc, users, tokens, gw,
		billing.WithLogger(log)).Router())
	r.Mount("/quotes", quotes.NewHandler(marketSvc, ledgerSvc, tokens,
		quotes.WithLogger(log)).Router())

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, r) })
	g.Go(sweep.Run(ctx))

	log.InfoContext(ctx, "api started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("environment", cfg.Environment))
	return g.Wait()
}

func planSource(cfg appConfig, pool *pgxpool.Pool) (catalog.Source, error) {
	if cfg.PlansPath != "" {
		return catalog.NewFileSource(cfg.PlansPath)
	}
	return catalog.NewPgSource(pool), nil
}

// buildNotifier picks the reminder transport: the webhook dispatcher when
// one is configured, the log otherwise.
func buildNotifier(cfg notifier.Config, log *slog.Logger) (notifier.Notifier, error) {
	if cfg.WebhookURL == "" {
		return notifier.NewLogNotifier(log), nil
	}
	return notifier.NewWebhookNotifier(cfg)
}

// credentialGuard limits requests per route and client address, answering
// rejections with the standard error envelope.
func credentialGuard(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return ratelimit.Middleware(limiter,
		func(r *http.Request) string {
			return r.URL.Path + ":" + clientip.GetIP(r)
		},
		ratelimit.WithDenyHandler(func(w http.ResponseWriter, _ *http.Request) {
			response.Error(w, response.ErrTooManyRequests)
		}),
		ratelimit.WithLogger(log),
	)
}
