package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/adapters/sports"
	"github.com/alejandrodnm/kalshibot/internal/adapters/storage"
	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/engine"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	marketsPath := flag.String("markets", "config/markets.yaml", "path to market series config")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	noJournal := flag.Bool("no-journal", false, "disable the SQLite fill journal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	marketsCfg, err := config.LoadMarkets(*marketsPath)
	if err != nil {
		slog.Error("failed to load markets config", "err", err, "path", *marketsPath)
		os.Exit(1)
	}

	slog.Info("kalshibot starting",
		"config", *configPath,
		"demo", cfg.Kalshi.Demo,
		"sports", len(marketsCfg),
		"poll_interval", cfg.PollInterval(),
	)

	signer, err := kalshi.LoadSigner(cfg.Kalshi.APIKeyID, cfg.Kalshi.PrivateKeyPath)
	if err != nil {
		slog.Error("failed to load private key", "err", err)
		os.Exit(1)
	}

	client, err := kalshi.NewClient(cfg.Kalshi.BaseURL, signer)
	if err != nil {
		slog.Error("failed to build kalshi client", "err", err)
		os.Exit(1)
	}

	b := bus.New()
	cache := domain.NewBookCache()
	risk := domain.NewRiskState()

	feeds, err := buildFeeds(cfg, marketsCfg)
	if err != nil {
		slog.Error("failed to build score feeds", "err", err)
		os.Exit(1)
	}

	var journal ports.FillJournal
	if !*noJournal {
		j, err := storage.NewFillJournal(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open fill journal", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer j.Close()
		journal = j
	}

	// El stream publica cada update aplicado al canal de telemetría;
	// el Brain nunca lee esa cola — lee la cache directo en el hot path.
	stream, err := kalshi.NewStreamClient(cfg.Kalshi.WSURL, signer, cache,
		func(u domain.MarketUpdate) { _ = b.MarketUpdates.Publish(context.Background(), u) })
	if err != nil {
		slog.Error("failed to build stream client", "err", err)
		os.Exit(1)
	}
	watcher := engine.NewWatcher(b, stream, cache, risk)

	oracle := engine.NewOracle(b, feeds, cfg.PollInterval())
	brain := engine.NewBrain(b, cache, risk, client, watcher, marketsCfg, engine.BrainConfig{
		MinEdgeCents:          cfg.Strategy.MinEdgeCents,
		MaxPriceSlippageCents: cfg.Strategy.MaxPriceSlippageCents,
		DefaultQuantity:       cfg.Strategy.DefaultQuantity,
		MaxQuantity:           cfg.Strategy.MaxQuantity,
		MaxOpenExposureCents:  cfg.Risk.MaxOpenExposureCents,
		MaxTradesPerGame:      cfg.Risk.MaxTradesPerGame,
	})
	sniper := engine.NewSniper(b, client, cfg.OrderTimeout())
	shield := engine.NewShield(b, risk, journal, engine.ShieldConfig{
		MaxDailyLossCents:    cfg.Risk.MaxDailyLossCents,
		MaxOpenExposureCents: cfg.Risk.MaxOpenExposureCents,
		MaxTradesPerGame:     cfg.Risk.MaxTradesPerGame,
	})

	supervisor := engine.NewSupervisor(b, client, risk, oracle, watcher, brain, sniper, shield,
		notify.NewConsole(), cfg.KeepaliveInterval())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := supervisor.Run(ctx); err != nil {
		slog.Error("supervisor exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("kalshibot stopped cleanly")
}

// buildFeeds arma un score feed por deporte según el provider configurado.
func buildFeeds(cfg *config.Config, marketsCfg config.MarketsConfig) ([]ports.ScoreFeed, error) {
	feeds := make([]ports.ScoreFeed, 0, len(marketsCfg))
	for sport, sc := range marketsCfg {
		switch sc.Provider {
		case "sportsdata_io":
			apiKey := cfg.Sports.SportsDataKeySoccer
			baseURL := cfg.Sports.SportsDataBaseSoccer
			if sport == domain.SportNCAABasketball {
				apiKey = cfg.Sports.SportsDataKeyNCAA
				baseURL = cfg.Sports.SportsDataBaseNCAA
			}
			if apiKey == "" {
				return nil, missingKeyErr(sport)
			}
			feeds = append(feeds, sports.NewSportsDataIOFeed(sport, apiKey, baseURL, sc.CompetitionID))
		default: // espn: gratis, sin key
			feeds = append(feeds, sports.NewESPNFeed(sport, sc.ESPNPath))
		}
	}
	return feeds, nil
}

type missingKeyErr domain.Sport

func (e missingKeyErr) Error() string {
	return "missing SportsData.io API key for sport " + string(e)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
