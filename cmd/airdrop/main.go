package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/airdrop/store/pgxstore"
	"github.com/screwyprof/airdrop/pkg/clock"
	"github.com/screwyprof/airdrop/pkg/logger"
	"github.com/screwyprof/airdrop/pkg/metrics"
	"github.com/screwyprof/airdrop/pkg/pgxdb"
	"github.com/screwyprof/airdrop/token"
	tokenstore "github.com/screwyprof/airdrop/token/store/pgxstore"
	"github.com/screwyprof/airdrop/web/config"
	"github.com/screwyprof/airdrop/web/handler"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

var ErrMissingAdministrator = errors.New("AIRDROP_ADMINISTRATOR is required when no config is stored")

func main() {
	cfg := config.New()

	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "Airdrop API Service starting",
		slog.String("version", version),
		slog.String("date", date),
		slog.String("storage", cfg.Storage),
	)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "Service failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.InfoContext(ctx, "Server exited gracefully")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	m.BuildInfo.WithLabelValues(version, date).Set(1)

	// Events reach the subscriber only after their operation committed
	feed := airdrop.NewChannelJournal(cfg.EventBuffer)
	waitSubscriber := newEventLogger(feed, log, m)
	defer func() {
		feed.Close()
		waitSubscriber()
	}()

	svc, err := newService(ctx, cfg, feed)
	if err != nil {
		return err
	}
	defer svc.close()

	current := svc.dist.Config()
	log.InfoContext(ctx, "Distribution loaded",
		slog.String("address", svc.dist.Address().Hex()),
		slog.String("administrator", current.Administrator.Hex()),
		slog.String("root", current.MerkleRoot.Hex()),
		slog.Uint64("expiration", current.ExpirationTimestamp),
	)

	mux := http.NewServeMux()
	handler.NewAirdrop(svc.dist, handlerOptions(cfg, svc, m, log)...).AddRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           logger.NewMiddleware(log)(m.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(gctx, "Server started", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.InfoContext(gctx, "Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type service struct {
	dist   *airdrop.Distribution
	finder airdrop.EventsFinder
	close  func()
}

// newService assembles the distribution over the configured storage
func newService(ctx context.Context, cfg config.Config, feed airdrop.Journal) (*service, error) {
	if cfg.Storage == config.StorageMemory {
		return newMemoryService(ctx, cfg, feed)
	}
	return newPostgresService(ctx, cfg, feed)
}

func newMemoryService(ctx context.Context, cfg config.Config, feed airdrop.Journal) (*service, error) {
	initial, err := initialConfig(cfg)
	if err != nil {
		return nil, err
	}

	ledger := token.NewLedger()
	if cfg.DevMint != "" {
		amount, err := uint256.FromDecimal(cfg.DevMint)
		if err != nil {
			return nil, fmt.Errorf("dev mint: %w", err)
		}
		if err := ledger.Mint(ctx, cfg.Address, amount); err != nil {
			return nil, fmt.Errorf("dev mint: %w", err)
		}
	}

	dist := airdrop.NewDistribution(cfg.Address, initial, ledger, airdrop.WithJournal(feed))
	return &service{dist: dist, close: func() {}}, nil
}

func newPostgresService(ctx context.Context, cfg config.Config, feed airdrop.Journal) (*service, error) {
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL, pgxdb.WithMaxConns(cfg.DatabaseMaxConns))
	if err != nil {
		return nil, err
	}

	store, storeCloser := pgxstore.New(db)
	ledger, _ := tokenstore.New(db) // shares the pool closed by storeCloser

	stored, err := store.LoadConfig(ctx)
	if errors.Is(err, pgxstore.ErrConfigNotFound) {
		stored, err = initialConfig(cfg)
		if err == nil {
			err = store.SaveConfig(ctx, stored)
		}
	}
	if err != nil {
		storeCloser()
		return nil, err
	}

	dist := airdrop.NewDistribution(cfg.Address, stored, ledger,
		airdrop.WithClaimLedger(store),
		airdrop.WithConfigStore(store),
		airdrop.WithJournal(airdrop.Journals(store, feed)),
	)
	return &service{dist: dist, finder: store, close: storeCloser}, nil
}

// initialConfig builds the config from the environment, deriving a zero expiration from AIRDROP_EXPIRES_IN
func initialConfig(cfg config.Config) (airdrop.Config, error) {
	if cfg.Administrator == (common.Address{}) {
		return airdrop.Config{}, ErrMissingAdministrator
	}

	initial := airdrop.Config{
		Administrator:       cfg.Administrator,
		Token:               cfg.Token,
		ExpirationTimestamp: cfg.ExpirationTimestamp,
		MerkleRoot:          cfg.MerkleRoot,
	}
	if initial.ExpirationTimestamp == 0 {
		initial.ExpirationTimestamp = clock.UnixAfter(clock.SystemClock{}, cfg.ExpiresIn)
	}
	return initial, nil
}

func handlerOptions(cfg config.Config, svc *service, m *metrics.Metrics, log *slog.Logger) []handler.Option {
	opts := []handler.Option{
		handler.WithMetrics(m),
		handler.WithLogger(log),
	}

	if svc.finder != nil {
		opts = append(opts, handler.WithEventsFinder(svc.finder))
	}

	if cfg.RateLimitPerMin > 0 {
		limit := rate.Every(time.Minute / time.Duration(cfg.RateLimitPerMin))
		var limiterOpts []handler.RateLimiterOption
		if cfg.RateLimitByHost {
			limiterOpts = append(limiterOpts, handler.WithHostKeys())
		}
		opts = append(opts, handler.WithRateLimiter(handler.NewRateLimiter(limit, max(1, cfg.RateLimitBurst), limiterOpts...)))
	}
	return opts
}
