package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/api"
	"github.com/amirphl/signalforge/internal/backtest"
	"github.com/amirphl/signalforge/internal/config"
	"github.com/amirphl/signalforge/internal/db"
	"github.com/amirphl/signalforge/internal/db/conf"
	"github.com/amirphl/signalforge/internal/exchange"
	"github.com/amirphl/signalforge/internal/livetrading"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/notifier"
	"github.com/amirphl/signalforge/internal/orderbook"
	"github.com/amirphl/signalforge/internal/tradecache"
	"github.com/amirphl/signalforge/internal/trades"
	"github.com/amirphl/signalforge/internal/utils"
)

func main() {
	cfg := config.MustLoadConfig()

	logger, err := utils.NewLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		utils.GetLogger().Fatal("Main | failed to create logger", zap.Error(err))
	}
	utils.SetLogger(logger)
	defer logger.Sync()

	logger.Info("Main | starting signalforge", zap.String("mode", cfg.Mode), zap.String("symbol", cfg.Symbol))

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Main | exiting with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Main | shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.RunMigration {
		if err := runMigrations(ctx, cfg.DBConnStr, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	if cfg.Mode == "book" {
		return runBook(ctx, cfg, logger)
	}

	storage, closeStorage, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	switch cfg.Mode {
	case "backtest":
		return runBacktest(ctx, cfg, storage, logger)
	case "fetch":
		return runFetch(ctx, cfg, storage, logger)
	case "serve":
		return api.NewServer(storage, logger).Start(ctx, cfg.ListenAddr)
	case "record":
		return runRecord(ctx, cfg, storage, logger)
	default:
		return fmt.Errorf("%w: %s", config.ErrInvalidMode, cfg.Mode)
	}
}

// openStorage connects to Postgres when a connection string is configured and
// falls back to in-memory storage otherwise.
func openStorage(cfg config.Config, logger *zap.Logger) (db.Storage, func(), error) {
	if cfg.DBConnStr == "" {
		logger.Warn("Main | no database configured, using in-memory storage")
		return db.NewMemory(), func() {}, nil
	}

	dbConfig, err := conf.NewConfig(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		return nil, nil, fmt.Errorf("create DB config: %w", err)
	}
	storage, err := db.New(*dbConfig)
	if err != nil {
		dbConfig.DB.Close()
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}
	logger.Info("Main | connected to Postgres")
	return storage, func() { dbConfig.DB.Close() }, nil
}

func tradeSource(cfg config.Config, storage db.Storage, logger *zap.Logger) (trades.Source, func(), error) {
	switch cfg.Source {
	case "postgres":
		if storage.GetDB() == nil {
			return nil, nil, errors.New("source postgres needs db_conn_str")
		}
		return trades.Sampled(storage, cfg.GranularityValue), func() {}, nil
	case "wallex":
		ex := exchange.NewWallexExchange(cfg.WallexAPIKey, logger)
		return trades.Sampled(ex, cfg.GranularityValue), func() {}, nil
	}

	opts := []trades.Option{trades.WithGranularity(cfg.GranularityValue), trades.WithLogger(logger)}
	closer := func() {}
	if cfg.CacheDir != "" {
		cache, err := tradecache.Open(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open trade cache: %w", err)
		}
		opts = append(opts, trades.WithCache(cache))
		closer = func() {
			if err := cache.Close(); err != nil {
				logger.Warn("Main | failed to close trade cache", zap.Error(err))
			}
		}
	}
	return trades.NewManager(cfg.DataDir, opts...), closer, nil
}

func runBacktest(ctx context.Context, cfg config.Config, storage db.Storage, logger *zap.Logger) error {
	src, closeSource, err := tradeSource(cfg, storage, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	n := notifier.New(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay, logger)

	res, err := backtest.RunBacktest(ctx, cfg, src, storage, n, logger)
	if err != nil {
		return err
	}
	if m, ok := src.(*trades.Manager); ok {
		st := m.LastLoadStats()
		logger.Info("Main | sampling",
			zap.Int("raw", st.RawCount),
			zap.Int("sampled", st.SampledCount),
			zap.Float64("ratio", st.Ratio),
			zap.Int("skipped_rows", st.SkippedRows))
	}
	fmt.Println(res.Render())
	return nil
}

// runFetch pulls the latest public trades from Wallex into the trade store.
func runFetch(ctx context.Context, cfg config.Config, storage db.Storage, logger *zap.Logger) error {
	ex := exchange.NewWallexExchange(cfg.WallexAPIKey, logger)
	fetched, err := ex.FetchTrades(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	if err := storage.SaveTrades(ctx, exchange.NormalizeSymbol(cfg.Symbol), fetched); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}
	count, err := storage.TradeCount(ctx, exchange.NormalizeSymbol(cfg.Symbol))
	if err != nil {
		return err
	}
	logger.Info("Main | fetched trades",
		zap.String("exchange", ex.Name()),
		zap.Int("fetched", len(fetched)),
		zap.Int("stored_total", count))
	return nil
}

// runRecord streams live trades into day files and the trade store.
func runRecord(ctx context.Context, cfg config.Config, storage db.Storage, logger *zap.Logger) error {
	if cfg.RecordFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RecordFor)
		defer cancel()
	}

	symbol := exchange.NormalizeSymbol(cfg.Symbol)
	stream := exchange.NewTradeStream(exchange.DefaultStreamURL, symbol, logger)
	rec := livetrading.NewRecorder(symbol, stream, trades.NewWriter(cfg.DataDir, symbol),
		livetrading.WithSaver(storage),
		livetrading.WithJournal(storage),
		livetrading.WithLogger(logger))

	n, err := rec.Run(ctx)
	logger.Info("Main | recording finished", zap.Int("trades", n), zap.Duration("requested", cfg.RecordFor))
	return err
}

// runBook seeds an order book from the live Wallex depth, or from a fixed
// two-level book when the exchange is unreachable, and prints its top.
func runBook(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	book := orderbook.New()

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	depth, err := exchange.NewWallexExchange(cfg.WallexAPIKey, logger).FetchDepth(fetchCtx, cfg.Symbol)
	if err != nil || (len(depth.Bids) == 0 && len(depth.Asks) == 0) {
		logger.Warn("Main | depth unavailable, using demo book", zap.Error(err))
		book.SetLevel(market.Bid, 100, 10)
		book.SetLevel(market.Ask, 105, 5)
	} else {
		depth.Apply(book)
	}

	fmt.Printf("Best bid: %s\n", formatBest(book.HasBid(), book.BestBid()))
	fmt.Printf("Best ask: %s\n", formatBest(book.HasAsk(), book.BestAsk()))
	if spread, ok := book.Spread(); ok {
		fmt.Printf("Spread:   %s\n", market.FormatPrice(spread))
	}
	for _, side := range []market.Side{market.Ask, market.Bid} {
		fmt.Printf("%s levels (%d):\n", strings.ToUpper(side.String()), book.Levels(side))
		for _, l := range book.Depth(side, 5) {
			fmt.Printf("  %12s  %d\n", market.FormatPrice(l.Price), l.Quantity)
		}
	}
	return nil
}

func formatBest(ok bool, p market.Price) string {
	if !ok {
		return "none"
	}
	return market.FormatPrice(p)
}

// runMigrations creates the database if it doesn't exist and runs the schema.sql script
func runMigrations(ctx context.Context, connStr string, logger *zap.Logger) error {
	logger.Info("Main | running database migrations")

	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in connection string")
	}

	// Connect to the maintenance database to create ours
	base := *u
	base.Path = "/postgres"
	baseDB, err := sql.Open("postgres", base.String())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		logger.Info("Main | creating database", zap.String("name", dbName))
		if _, err = baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	target, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer target.Close()

	schemaPath, err := conf.FindSchema()
	if err != nil {
		return err
	}
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	for _, stmt := range conf.SplitStatements(string(schemaSQL)) {
		if _, err := target.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logger.Info("Main | database migrations completed")
	return nil
}
