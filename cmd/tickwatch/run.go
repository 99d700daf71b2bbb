package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/tickwatch/internal/analysis"
	"github.com/rewired-gh/tickwatch/internal/config"
	"github.com/rewired-gh/tickwatch/internal/feed"
	"github.com/rewired-gh/tickwatch/internal/httpapi"
	"github.com/rewired-gh/tickwatch/internal/logger"
	"github.com/rewired-gh/tickwatch/internal/metrics"
	"github.com/rewired-gh/tickwatch/internal/monitor"
	"github.com/rewired-gh/tickwatch/internal/publish"
	"github.com/rewired-gh/tickwatch/internal/storage"
	"github.com/rewired-gh/tickwatch/internal/telegram"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", configPath)

	source, closeSource := newSource(cfg.Feed)
	defer closeSource()

	mt := metrics.New()
	opts := []monitor.Option{monitor.WithMetrics(mt)}

	if cfg.Storage.Enabled {
		store, err := storage.New(cfg.Storage.MaxAlerts, cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		opts = append(opts, monitor.WithStore(store), monitor.WithSinks(store))
	} else {
		logger.Debug("Storage disabled, session state will not survive restarts")
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		var err error
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		opts = append(opts, monitor.WithSinks(telegramClient), monitor.WithNotifier(telegramClient))
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if cfg.Redis.Enabled {
		pub, err := publish.New(publish.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Channel:      cfg.Redis.Channel,
			HistoryKey:   cfg.Redis.HistoryKey,
			HistoryLimit: cfg.Redis.HistoryLimit,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Redis publisher: %v", err)
		}
		defer pub.Close()
		opts = append(opts, monitor.WithSinks(pub))
		if !cfg.Storage.Enabled {
			opts = append(opts, monitor.WithJournal(pub))
		}
		logger.Info("Publishing alerts to Redis channel %s", cfg.Redis.Channel)
	}

	mon := monitor.New(source, monitorConfig(cfg), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.SetStatusFunc(func() string { return mon.Snapshot().Status })
		telegramClient.ListenForCommands(ctx)
	}

	if cfg.HTTP.Enabled {
		srv := httpapi.NewServer(httpapi.Config{
			Addr:         cfg.HTTP.Addr,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}, mon, mt.Handler())
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("Display API stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shut down display API: %v", err)
			}
		}()
	}

	err := mon.Run(ctx)
	mon.Shutdown()
	logger.Info("Service stopped")
	return err
}

// newSource builds the configured tick source and its cleanup.
func newSource(cfg config.FeedConfig) (monitor.TickSource, func()) {
	if cfg.Mode == "websocket" {
		ws := feed.NewWSSource(cfg.URL, cfg.QueueSize, cfg.Interval)
		return ws, func() {
			if err := ws.Close(); err != nil {
				logger.Debug("Failed to close websocket feed: %v", err)
			}
		}
	}
	return feed.NewHTTPSource(feed.HTTPConfig{
		URL:                cfg.URL,
		Timeout:            cfg.Timeout,
		RetryMaxElapsed:    cfg.RetryMaxElapsed,
		RateLimit:          cfg.RateLimit,
		RateBurst:          cfg.RateBurst,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerCooldown:    cfg.BreakerCooldown,
	}), func() {}
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		Asset:              cfg.Analysis.Asset,
		Interval:           cfg.Feed.Interval,
		Autostart:          cfg.Session.Autostart,
		HistorySize:        cfg.Session.HistorySize,
		ChartPoints:        cfg.Session.ChartPoints,
		CheckpointInterval: cfg.Session.CheckpointInterval,
		Analysis:           analysisConfig(cfg.Analysis),
	}
}

func analysisConfig(a config.AnalysisConfig) analysis.Config {
	return analysis.Config{
		WindowCapacity:    a.WindowCapacity,
		StructureLookback: a.StructureLookback,
		SwingRadius:       a.SwingRadius,
		MaxSwings:         a.MaxSwings,
		ATRPeriod:         a.ATRPeriod,
		FastATRPeriod:     a.FastATRPeriod,
		HighVolRatio:      a.HighVolRatio,
		TrendRatio:        a.TrendRatio,
		AlertMinTicks:     a.AlertMinTicks,
		VolumeLookback:    a.VolumeLookback,
		VolumeSpike:       a.VolumeSpike,
		ExpansionMultiple: a.ExpansionMultiple,
		Cooldown:          a.Cooldown,
	}
}
