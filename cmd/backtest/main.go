package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"autoCoinBot/config"
	"autoCoinBot/internal/adapters/logger"
	"autoCoinBot/internal/analyzer"
	"autoCoinBot/internal/backtest"
	"autoCoinBot/internal/utils"
)

func main() {
	csvPath := flag.String("csv", "", "CSV file of historical bars (see cmd/fetch_klines)")
	symbol := flag.String("symbol", "", "instrument to replay (defaults to the first configured symbol)")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("FATAL: -csv is required")
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	sym := *symbol
	if sym == "" {
		if len(cfg.Symbols) == 0 {
			log.Fatal("FATAL: no symbols configured and -symbol not given")
		}
		sym = cfg.Symbols[0]
	}

	// 3. Load bars
	bars, err := utils.ReadBarsFromCSV(*csvPath)
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to read bars")
		log.Fatalf("FATAL: Failed to read bars: %v", err)
	}
	appLogger.Info(context.Background(), "Loaded bars", map[string]interface{}{"count": len(bars), "file": *csvPath})

	// 4. Build the analyzer with the live trading parameters
	a, err := analyzer.New(sym, analyzer.Config{
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
		log.Fatalf("FATAL: Failed to initialize analyzer: %v", err)
	}

	// 5. Replay
	result, err := backtest.Run(context.Background(), backtest.Config{
		Symbol:             sym,
		QuoteAsset:         cfg.QuoteAsset,
		StartCash:          cfg.StartCash,
		PerCoinCapFraction: cfg.PerCoinCapFraction,
		MinOrderAmount:     cfg.MinOrderAmount,
		StopLoss:           cfg.StopLoss,
		AveragingFraction:  cfg.AveragingFraction,
	}, a, bars, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "Backtest failed")
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	fmt.Printf("Backtest %s over %d bars\n%s\n", sym, len(bars), result.Summary())
}
