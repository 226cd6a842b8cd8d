package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/sentitrader/internal/blob/s3"
	"github.com/alanyoungcy/sentitrader/internal/cache/memory"
	"github.com/alanyoungcy/sentitrader/internal/cache/redis"
	"github.com/alanyoungcy/sentitrader/internal/config"
	"github.com/alanyoungcy/sentitrader/internal/crypto"
	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/executor"
	"github.com/alanyoungcy/sentitrader/internal/notify"
	"github.com/alanyoungcy/sentitrader/internal/platform/evm"
	"github.com/alanyoungcy/sentitrader/internal/platform/hyperliquid"
	"github.com/alanyoungcy/sentitrader/internal/platform/sentichain"
	"github.com/alanyoungcy/sentitrader/internal/store/postgres"
	"github.com/alanyoungcy/sentitrader/internal/store/sqlite"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

// spotNetwork is the network the built-in spot agents trade on.
const spotNetwork = "base"

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Positions domain.PositionStore
	Logs      domain.AgentLogStore

	// Caches
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob storage
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
	Sink     *notify.Sink

	// Trading
	Wallet   string
	Signals  *sentichain.Client
	Spot     *strategy.SpotVenue
	Perp     strategy.PerpFactory
	Registry *strategy.Registry
}

// needsTrading returns true for modes that run agents.
func needsTrading(mode string) bool {
	switch mode {
	case "tick", "unwind", "run-all", "serve":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that require object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.S3.Enabled || strings.ToLower(cfg.Mode) == "archive"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Registry: strategy.DefaultRegistry()}

	// --- Durable store ---
	switch strings.ToLower(cfg.Storage.Driver) {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		pool := pgClient.Pool()
		deps.Positions = postgres.NewPositionStore(pool)
		deps.Logs = postgres.NewAgentLogStore(pool)
	default:
		sqlClient, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = sqlClient.Close() })
		deps.Positions = sqlite.NewPositionStore(sqlClient)
		deps.Logs = sqlite.NewAgentLogStore(sqlClient)
	}

	// --- Locks and rate limits ---
	sentiRate := cfg.SentiChain.RateLimitPerMinute
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, sentiRate, time.Minute)
	} else {
		deps.Locks = memory.NewKeyedLocker()
		deps.RateLimiter = memory.NewRateLimiter(sentiRate, time.Minute)
	}

	// --- S3 log archive ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewLogArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), deps.Logs, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Levels, logger)
	deps.Sink = notify.NewSink(out, deps.Logs, deps.Notifier, logger)

	if !cfg.NeedsWallet() {
		return deps, cleanup, nil
	}

	// --- Wallet ---
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}
	signer, err := crypto.NewSigner(key)
	if err != nil {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}
	deps.Wallet = signer.Address().Hex()

	if !needsTrading(mode) {
		return deps, cleanup, nil
	}

	// --- Signals ---
	deps.Signals = sentichain.New(sentichain.Config{
		BaseURL: cfg.SentiChain.BaseURL,
		APIKey:  cfg.SentiChain.APIKey,
		Timeout: cfg.SentiChain.Timeout.Duration,
	}, deps.RateLimiter, logger)

	// --- Spot venue ---
	// A network that cannot be reached leaves Spot nil; spot agents report
	// it and perp agents still run.
	if n, ok := cfg.Networks[spotNetwork]; ok {
		venue, closeFn, err := wireSpot(ctx, n, signer, deps.Locks, cfg.Agents.LockTTL.Duration, logger)
		if err != nil {
			logger.WarnContext(ctx, "spot venue unavailable",
				slog.String("network", spotNetwork),
				slog.String("error", err.Error()),
			)
		} else {
			closers = append(closers, closeFn)
			deps.Spot = venue
		}
	}

	// --- Perp venue ---
	hl := hyperliquid.New(hyperliquid.Config{
		BaseURL: cfg.Hyperliquid.BaseURL,
		Mainnet: !cfg.Hyperliquid.Testnet,
		Timeout: cfg.Hyperliquid.Timeout.Duration,
	}, signer, logger)
	perpCfg := cfg.Hyperliquid
	deps.Perp = func(coin string) (strategy.PerpTrader, error) {
		return executor.NewPerpEngine(hl, deps.Wallet, executor.PerpConfig{
			Coin:                 coin,
			Leverage:             perpCfg.Leverage,
			SetLeverage:          perpCfg.SetLeverage,
			MarginBuffer:         perpCfg.MarginBuffer,
			Slippage:             perpCfg.Slippage,
			SizePrecision:        perpCfg.SizePrecision,
			DefaultSizePrecision: perpCfg.DefaultSizePrecision,
		}, logger), nil
	}

	return deps, cleanup, nil
}

// wireSpot dials the network and assembles the swap pipeline. Every spot
// agent shares the pipeline's wallet lock, so their swaps run one at a time.
func wireSpot(ctx context.Context, n config.NetworkConfig, signer *crypto.Signer, locks domain.LockManager, lockTTL time.Duration, logger *slog.Logger) (*strategy.SpotVenue, func(), error) {
	chain, err := evm.Dial(ctx, evm.ClientConfig{
		RPCURL:         n.RPCURL,
		ChainID:        n.ChainID,
		PublicRPC:      n.PublicRPC,
		RatePerSec:     n.RPCRatePerSec,
		ReceiptTimeout: n.ReceiptTimeout.Duration,
	}, signer, logger)
	if err != nil {
		return nil, nil, err
	}

	router, err := evm.Checksum(n.Router)
	if err != nil {
		chain.Close()
		return nil, nil, err
	}
	stable, err := evm.Checksum(n.StableToken)
	if err != nil {
		chain.Close()
		return nil, nil, err
	}
	tokens := make(map[string]common.Address, len(n.Tokens))
	for sym, addr := range n.Tokens {
		a, err := evm.Checksum(addr)
		if err != nil {
			chain.Close()
			return nil, nil, fmt.Errorf("token %s: %w", sym, err)
		}
		tokens[sym] = a
	}

	resolver := executor.NewRouteResolver(chain, router,
		executor.DefaultCandidates(common.HexToAddress(n.V2Factory), common.HexToAddress(n.CLFactory)), logger)
	pipeline := executor.NewSpotPipeline(chain, resolver, executor.SpotConfig{
		Router:          router,
		ApproveGasLimit: n.ApproveGasLimit,
		SwapGasLimit:    n.SwapGasLimit,
		SwapDeadline:    n.SwapDeadline.Duration,
		ExplorerURL:     n.ExplorerURL,
	}, logger).WithWalletLock(locks, lockTTL)

	return &strategy.SpotVenue{
		Chain:        chain,
		Swapper:      pipeline,
		StableSymbol: n.StableSymbol,
		StableToken:  stable,
		Tokens:       tokens,
		MinTrade:     n.MinTradeAmount,
	}, chain.Close, nil
}
