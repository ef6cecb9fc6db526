package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gamboaalejandro/trading-bot/internal/config"
	"github.com/gamboaalejandro/trading-bot/internal/engine"
	"github.com/gamboaalejandro/trading-bot/internal/exchange"
	"github.com/gamboaalejandro/trading-bot/internal/ledger"
	"github.com/gamboaalejandro/trading-bot/internal/market"
	"github.com/gamboaalejandro/trading-bot/internal/metrics"
	"github.com/gamboaalejandro/trading-bot/internal/risk"
	"github.com/gamboaalejandro/trading-bot/internal/util"
)

const defaultInitialBalance = 10000.0

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	tradeLog := flag.String("trade-log", "data/trades.jsonl", "JSONL trade event log, empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := util.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	balance := defaultInitialBalance
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			balance = parsed
		} else {
			log.Warn().Str("value", v).Msg("ignoring invalid INITIAL_BALANCE")
		}
	}
	account := ledger.NewAccount(balance)

	var recorder ledger.TradeRecorder = ledger.NopRecorder{}
	if *tradeLog != "" {
		jsonl, err := ledger.NewJSONLRecorder(*tradeLog)
		if err != nil {
			log.Fatal().Err(err).Str("path", *tradeLog).Msg("open trade log")
		}
		defer jsonl.Close()
		recorder = jsonl
	}

	client := exchange.NewPaperClient(account, log)
	riskEng := risk.NewEngine(cfg.Risk, log)
	guard := risk.NewPortfolioGuard(cfg.Portfolio, log)

	eng, err := engine.New(cfg, account, client, riskEng, guard, recorder, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	feed := exchange.NewFeed(
		cfg.Feed.Provider,
		cfg.ActiveSymbols(),
		log,
		exchange.WithInterval(cfg.Feed.Interval),
		exchange.WithMaxReconnects(cfg.Feed.MaxReconnects),
	)
	updates := make(chan market.Update, 1024)

	go func() {
		if err := feed.Run(ctx, updates); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
		}
		cancel()
	}()

	log.Info().
		Str("env", cfg.App.Env).Str("provider", cfg.Feed.Provider).
		Float64("balance", balance).
		Msg("trader started")

	if err := eng.Run(ctx, updates); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("engine stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
