package main // Entry point package

import (
	"context"   // lifetime of the process and shutdown deadline
	"errors"    // distinguishes a normal server close
	"net/http"  // http.ErrServerClosed
	"os"        // stdout for the logger, exit codes
	"os/signal" // graceful shutdown on SIGINT/SIGTERM
	"syscall"   // SIGTERM
	"time"      // timeouts and service start time

	"github.com/iliyamo/balance-dashboard/internal/analytics"  // aggregation service
	"github.com/iliyamo/balance-dashboard/internal/config"     // Internal config loader
	"github.com/iliyamo/balance-dashboard/internal/database"   // MySQL connections and migrations
	"github.com/iliyamo/balance-dashboard/internal/handler"    // HTTP handlers
	"github.com/iliyamo/balance-dashboard/internal/logging"    // structured logging and error reporting
	"github.com/iliyamo/balance-dashboard/internal/mailer"     // email senders
	"github.com/iliyamo/balance-dashboard/internal/queue"      // email queue consumer
	"github.com/iliyamo/balance-dashboard/internal/repository" // data access
	"github.com/iliyamo/balance-dashboard/internal/router"     // Internal router setup
	"github.com/iliyamo/balance-dashboard/internal/service"    // verification codes and email notifier
)

func main() {
	cfg := config.Load() // Load environment config
	log := logging.New(os.Stdout, cfg.Env)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	var reporter logging.Reporter = logging.NopReporter()
	if cfg.RollbarToken != "" {
		rb := logging.NewRollbarReporter(cfg.RollbarToken, cfg.Env, cfg.AppName)
		defer rb.Close()
		reporter = rb
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info(ctx, "migrations applied")
	}

	wpDB, err := database.OpenStore(cfg.WordPress)
	if err != nil {
		return err
	}
	defer wpDB.Close()
	mtDB := wpDB
	if !database.SameStore(cfg.WordPress, cfg.Matomo) {
		if mtDB, err = database.OpenStore(cfg.Matomo); err != nil {
			return err
		}
		defer mtDB.Close()
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn(ctx, "redis unreachable, cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	sender := mailer.New(cfg.Email.SendGridKey, cfg.Email.From, cfg.AppName, log)
	notifier := service.NewNotifier(cfg.Email, sender, log)
	if cfg.Email.Delivery == "queue" {
		go func() {
			if err := queue.StartEmailConsumer(ctx, cfg.Email.AMQPURL, cfg.Email.Queue, sender, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "email consumer stopped", "err", err)
			}
		}()
	}
	codes := &service.Verification{
		Store:       repository.NewVerificationCodeRepo(db),
		Notifier:    notifier,
		TTL:         time.Duration(cfg.CodeTTLMin) * time.Minute,
		MaxAttempts: cfg.CodeMaxAttempts,
		Cost:        cfg.BcryptCost,
	}

	users := repository.NewUserRepo(db)
	tickets := repository.NewTicketRepo(db)
	stores := map[string]handler.Pinger{"wordpress": wpDB, "matomo": mtDB}
	svc := analytics.New(
		repository.NewWordPressRepo(wpDB, cfg.WordPress.TablePrefix),
		repository.NewMatomoRepo(mtDB, cfg.Matomo.TablePrefix),
		cfg.Location, log, cfg.WPBaseURL,
	)

	e := router.New(router.Deps{
		Cfg:       cfg,
		Log:       log,
		Reporter:  reporter,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Local:     db,
		Stores:    stores,
		Auth:      handler.NewAuthHandler(cfg, db, codes, notifier, log),
		Account: &handler.AccountHandler{
			Cfg:       cfg,
			Users:     users,
			Questions: repository.NewSecurityQuestionRepo(db),
			Prefs:     repository.NewPreferenceRepo(db),
			Log:       log,
		},
		Support: &handler.SupportHandler{Tickets: tickets, Notifier: notifier, Log: log},
		Admin: &handler.AdminHandler{
			Cfg: cfg, Users: users, Tickets: tickets,
			Stores: stores, Started: time.Now(), Log: log,
		},
		Analytics: &handler.AnalyticsHandler{Svc: svc, Users: users, Loc: cfg.Location, Log: log},
	})

	addr := ":" + cfg.Port // Address string with port
	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", addr, "env", cfg.Env)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}
