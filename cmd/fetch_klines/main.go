package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"autoCoinBot/config"
	"autoCoinBot/internal/adapters/binanceclient"
	"autoCoinBot/internal/adapters/logger"
	"autoCoinBot/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "", "instrument to fetch (defaults to the first configured symbol)")
	interval := flag.String("interval", "", "bar interval (defaults to the configured one)")
	months := flag.Int("months", 3, "how many months of history to fetch")
	flag.Parse()

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
	iv := *interval
	if iv == "" {
		iv = cfg.BarInterval
	}

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	fmt.Printf("Fetching bars for %s %s from %s to %s...\n", sym, iv, start.Format("2006-01-02"), end.Format("2006-01-02"))
	bars, err := binanceClient.GetBarsRange(context.Background(), sym, iv, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching bars")
		log.Fatalf("FATAL: Error fetching bars: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched bars", map[string]interface{}{"count": len(bars)})

	filename := fmt.Sprintf("data/%s_%s_%s_to_%s.csv", sym, iv, start.Format("20060102"), end.Format("20060102"))
	if err := utils.WriteBarsToCSV(bars, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("FATAL: Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved bars", map[string]interface{}{"filename": filename})
}
