// Package main wires together the risk engine, execution gateway, strategy
// framework, and OMS snapshot server into a single running process.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantloop/core/internal/api"
	"github.com/quantloop/core/internal/config"
	"github.com/quantloop/core/internal/execution"
	"github.com/quantloop/core/internal/metrics"
	"github.com/quantloop/core/internal/risk"
	"github.com/quantloop/core/internal/strategy"
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// engineAdapter bridges execution.Engine's OrderAck to the strategy
// package's venue-agnostic VenueAck, keeping internal/strategy free of an
// import on internal/execution.
type engineAdapter struct {
	engine *execution.Engine
}

func (a *engineAdapter) SubmitOrder(ctx context.Context, order *types.Order) (strategy.VenueAck, error) {
	ack, err := a.engine.SubmitOrder(ctx, order)
	if err != nil {
		return strategy.VenueAck{}, err
	}
	return strategy.VenueAck{VenueOrderID: ack.VenueOrderID, Status: ack.Status}, nil
}

func (a *engineAdapter) CancelOrder(ctx context.Context, orderID types.OrderId) error {
	return a.engine.CancelOrder(ctx, orderID)
}

func (a *engineAdapter) GetPosition(market types.MarketId) types.Position {
	return a.engine.GetPosition(market)
}

func (a *engineAdapter) GetActiveOrders() []types.Order {
	return a.engine.GetActiveOrders()
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to process config")
	riskPolicyPath := flag.String("risk-policy", "", "Override risk_policy_file from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *riskPolicyPath != "" {
		cfg.RiskFile = *riskPolicyPath
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger := setupLogger(cfg.Logging.Level)
	defer logger.Sync()

	logger.Info("starting quantloopd",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("venues", len(cfg.Venues)),
	)

	riskEngine, err := loadRiskEngine(logger, cfg.RiskFile)
	if err != nil {
		logger.Fatal("failed to load risk policy", zap.Error(err))
	}

	riskMonitor := risk.NewPortfolioRiskMonitor(250, 1.0/365, 0)
	riskEngine.SetAdvancedRiskChecker(riskMonitor)

	oms := execution.NewOMS(logger)
	simulator := risk.NewSimulator()
	limiters := execution.NewRateLimiterRegistry()
	validator := execution.NewValidator(execution.DefaultValidatorConfig())

	reg := metrics.NewRegistry()
	sink := metrics.NewExecutionSink(reg)

	engine := execution.NewEngine(logger, execution.DefaultEngineConfig(), limiters, validator, riskEngine, oms, simulator, sink)
	engine.SetMarkObserver(riskMonitor)

	for _, venueCfg := range cfg.Venues {
		limiters.Register(venueCfg.Name, venueCfg.RateLimitPerSec, float64(venueCfg.RateLimitBurst))
		adapter := execution.NewPolymarketAdapter(execution.PolymarketConfig{
			BaseURL:    venueCfg.BaseURL,
			APIKey:     venueCfg.APIKey,
			APISecret:  venueCfg.APISecret,
			Passphrase: venueCfg.Passphrase,
		})
		engine.AddAdapter(adapter)
	}

	coordinator := strategy.NewCoordinator(logger)
	port := &engineAdapter{engine: engine}

	// Strategy registration is operator-driven in production; a market
	// maker on every configured venue's default market is wired here as
	// the process's baseline strategy.
	for _, venueCfg := range cfg.Venues {
		market := types.MarketId(venueCfg.Name + ":default")
		mm := strategy.NewMarketMaker(market,
			decimal.NewFromFloat(0.02),
			decimal.Zero,
			decimal.NewFromInt(1000),
			decimal.NewFromInt(10),
			decimal.Zero,
		)
		sctx := strategy.NewContext("market_maker:"+venueCfg.Name, port, nil, 256)
		if err := coordinator.RegisterStrategy("market_maker:"+venueCfg.Name, mm, sctx, []types.MarketId{market}); err != nil {
			logger.Error("failed to register strategy", zap.Error(err))
		}
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = reg.Handler()
	}

	server := api.NewServer(logger, api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    cfg.Metrics.Path,
	}, engine, oms, coordinator, metricsHandler)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("quantloopd started")

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("quantloopd stopped")
}

func loadRiskEngine(logger *zap.Logger, path string) (*risk.Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return risk.FromConfig(logger, data, risk.FormatYAML)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
