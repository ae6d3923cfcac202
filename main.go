package main

import (
	"context"
	"log" // Standard log only for fatal errors before the logger is set up

	"autoCoinBot/config"
	"autoCoinBot/internal/adapters/binanceclient"
	"autoCoinBot/internal/adapters/logger"
	"autoCoinBot/internal/adapters/paper"
	"autoCoinBot/internal/adapters/slacknotifier"
	"autoCoinBot/internal/adapters/sqlite"
	"autoCoinBot/internal/analyzer"
	"autoCoinBot/internal/app"
	"autoCoinBot/internal/balance"
	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/engine"
	"autoCoinBot/internal/notify"
	"autoCoinBot/internal/ports"
	"autoCoinBot/internal/retry"
	"autoCoinBot/internal/risk"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	// The market data stream is live even in dry-run mode; only order
	// placement and balances are simulated there.
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized", map[string]interface{}{"testnet": cfg.IsTestnet})

	// 5. Select the order/funds boundary: simulated ledger in dry-run,
	// live orders with a short-TTL balance cache otherwise.
	var (
		orders ports.OrderClient
		funds  ports.FundsSource
		prices app.PriceSink
		health app.HealthChecker
	)
	if cfg.DryRun {
		ledger, err := paper.New(cfg.QuoteAsset, cfg.StartCash, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize paper ledger")
			log.Fatalf("FATAL: Failed to initialize paper ledger: %v", err)
		}
		orders, funds, prices = ledger, ledger, ledger
		appLogger.Info(ctx, "Dry-run mode: orders filled against simulated ledger", map[string]interface{}{"startCash": cfg.StartCash})
	} else {
		assets := make([]string, 0, len(cfg.Symbols)+1)
		assets = append(assets, cfg.QuoteAsset)
		for _, symbol := range cfg.Symbols {
			assets = append(assets, cfg.BaseAsset(symbol))
		}
		cache, err := balance.New(binanceClient, assets, cfg.BalanceTTL, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize balance cache")
			log.Fatalf("FATAL: Failed to initialize balance cache: %v", err)
		}
		orders, funds = binanceClient, cache
		health = binanceClient
	}

	// 6. Initialize Notification Dispatcher (Slack transport)
	var transport ports.NotificationTransport
	if cfg.SlackToken != "" {
		transport, err = slacknotifier.NewClient(slacknotifier.Config{
			Token:  cfg.SlackToken,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Slack client")
			log.Fatalf("FATAL: Failed to initialize Slack client: %v", err)
		}
	} else {
		transport = logTransport{logger: appLogger}
		appLogger.Warn(ctx, "No Slack token configured, notifications go to the log only")
	}
	dispatcher, err := notify.New(notify.Config{
		Channels:    cfg.SlackChannels,
		DailyLimit:  cfg.DailyMessageLimit,
		MinInterval: cfg.MinMessageInterval,
	}, transport, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize notification dispatcher")
		log.Fatalf("FATAL: Failed to initialize notification dispatcher: %v", err)
	}

	// 7. Initialize Risk Limits and Retry Policy
	limits, err := risk.NewManager(risk.Config{
		StartCash:          cfg.StartCash,
		PerCoinCapFraction: cfg.PerCoinCapFraction,
		MaxPositions:       cfg.MaxPositions,
		MinOrderAmount:     cfg.MinOrderAmount,
		StopLoss:           cfg.StopLoss,
		AveragingFraction:  cfg.AveragingFraction,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk limits")
		log.Fatalf("FATAL: Failed to initialize risk limits: %v", err)
	}
	policy, err := retry.New(cfg.RetryAttempts, cfg.RetryDelay, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize retry policy")
		log.Fatalf("FATAL: Failed to initialize retry policy: %v", err)
	}
	policy.OnExhausted = func(ctx context.Context, op string, err error) {
		dispatcher.Send(ctx, domain.ChannelError, "boundary call "+op+" failed after retries: "+err.Error(), true)
	}

	// 8. Initialize Signal Analyzers, one per instrument
	analyzers := make(map[string]ports.Analyzer, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		a, err := analyzer.New(symbol, analyzer.Config{
			RSIPeriod:     cfg.RSIPeriod,
			RSIOversold:   cfg.RSIOversold,
			RSIOverbought: cfg.RSIOverbought,
			MACDFast:      cfg.MACDFast,
			MACDSlow:      cfg.MACDSlow,
			MACDSignal:    cfg.MACDSignal,
			BandPeriod:    cfg.BandPeriod,
			BandWidth:     cfg.BandWidth,
			VolumePeriod:  cfg.VolumePeriod,
			VolumeFloor:   cfg.VolumeFloor,
			Cooldown:      cfg.Cooldown,
		}, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize analyzer", map[string]interface{}{"symbol": symbol})
			log.Fatalf("FATAL: Failed to initialize analyzer for %s: %v", symbol, err)
		}
		analyzers[symbol] = a
	}

	// 9. Initialize Position Engine
	eng, err := engine.New(engine.Config{QuoteAsset: cfg.QuoteAsset}, cfg.Symbols, engine.Deps{
		Orders:   orders,
		Funds:    funds,
		Repo:     repo,
		Limits:   limits,
		Retry:    policy,
		Notifier: dispatcher,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position engine")
		log.Fatalf("FATAL: Failed to initialize position engine: %v", err)
	}

	// 10. Initialize and start the Trading Service
	tradingService, err := app.NewTradingService(cfg, app.Deps{
		Market:     binanceClient,
		Engine:     eng,
		Analyzers:  analyzers,
		Funds:      funds,
		TradeRepo:  repo,
		StateRepo:  repo,
		Dispatcher: dispatcher,
		Logger:     appLogger,
		Health:     health,
		Prices:     prices,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}
	appLogger.Info(ctx, "Application finished gracefully.")
}

// logTransport satisfies the notification boundary when no chat token is
// configured, keeping dry-run usable without Slack credentials.
type logTransport struct {
	logger ports.Logger
}

func (t logTransport) Post(ctx context.Context, channel, text string) (ports.PostResult, error) {
	t.logger.Info(ctx, "NOTIFY "+channel, map[string]interface{}{"text": text})
	return ports.PostResult{OK: true}, nil
}
