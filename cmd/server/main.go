package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/event-ticket-ledger/internal/config"
	"github.com/iliyamo/event-ticket-ledger/internal/database"
	"github.com/iliyamo/event-ticket-ledger/internal/handler"
	"github.com/iliyamo/event-ticket-ledger/internal/ledger"
	"github.com/iliyamo/event-ticket-ledger/internal/queue"
	"github.com/iliyamo/event-ticket-ledger/internal/repository"
	"github.com/iliyamo/event-ticket-ledger/internal/router"
	"github.com/iliyamo/event-ticket-ledger/internal/service"
	"github.com/iliyamo/event-ticket-ledger/internal/token"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := log.New("ledger")
	if cfg.Env == "dev" {
		logger.SetLevel(log.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	states := repository.NewEventStateRepo(db, cfg.LedgerID)
	for _, m := range []interface{ Migrate(context.Context) error }{users, tokens, states} {
		if err := m.Migrate(ctx); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}

	caller, closeCaller := tokenCaller(cfg, logger)
	defer closeCaller()

	publisher := &service.Publisher{
		URL:     cfg.AMQPURL,
		Queue:   cfg.EventsQueue,
		Log:     log.New("publisher"),
		Timeout: 5 * time.Second,
	}
	actor, err := ledger.Open(ctx, states, cfg.OwnerID, cfg.TokenActor,
		token.NewClient(cfg.LedgerID, caller),
		ledger.WithNotifier(publisher),
		ledger.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("ledger: %v", err)
	}

	if cfg.ConsumerEnabled {
		consumer := &queue.Consumer{URL: cfg.AMQPURL, Queue: cfg.EventsQueue, Dir: "logs", Log: log.New("ledger-consumer")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("consumer stopped: %v", err)
			}
		}()
	}

	mounts := router.Mounts{
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
	}
	if rdb, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		logger.Warnf("redis unavailable, cache and rate limiting disabled: %v", err)
	} else {
		mounts.Redis = rdb
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Logger = logger
	router.RegisterRoutes(e, actor)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterLedger(e, handler.NewLedgerHandler(actor, cfg.RequestTimeout, logger), cfg.JWTSecret, mounts)

	addr := ":" + cfg.Port
	logger.Infof("listening on %s (env=%s, token transport=%s)", addr, cfg.Env, cfg.TokenTransport)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// tokenCaller connects the ledger to its token actor.  The memory transport
// runs an in-process token actor and is meant for local development.
func tokenCaller(cfg config.Config, logger *log.Logger) (token.Caller, func()) {
	switch cfg.TokenTransport {
	case config.TransportMemory:
		logger.Warnf("using in-process token actor; balances are lost on restart")
		return token.LocalCaller{Handler: token.NewMultitoken()}, func() {}
	case config.TransportAMQP:
		c, err := token.DialAMQP(cfg.AMQPURL, cfg.TokenQueue, log.New("token-rpc"))
		if err != nil {
			logger.Fatalf("token actor: %v", err)
		}
		return c, func() { _ = c.Close() }
	}
	logger.Fatalf("unknown TOKEN_TRANSPORT %q", cfg.TokenTransport)
	return nil, nil
}
