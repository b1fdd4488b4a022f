package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/azusa152/Folio/internal/cache"
	"github.com/azusa152/Folio/internal/collector"
	"github.com/azusa152/Folio/internal/config"
	"github.com/azusa152/Folio/internal/dispatch"
	"github.com/azusa152/Folio/internal/engine"
	"github.com/azusa152/Folio/internal/fx"
	"github.com/azusa152/Folio/internal/logging"
	"github.com/azusa152/Folio/internal/metrics"
	"github.com/azusa152/Folio/internal/model"
	"github.com/azusa152/Folio/internal/notifier"
	"github.com/azusa152/Folio/internal/recorder"
	"github.com/azusa152/Folio/internal/scheduler"
	"github.com/azusa152/Folio/internal/store"
	"github.com/azusa152/Folio/internal/strategy"
)

func main() {
	configPath := flag.String("config", "configs/radar.yaml", "path to the YAML config")
	flag.Parse()
	if v := os.Getenv("RADAR_CONFIG"); v != "" && *configPath == "configs/radar.yaml" {
		*configPath = v
	}

	stderr := zerolog.New(os.Stderr)
	cfg, err := config.Load(*configPath)
	if err != nil {
		stderr.Fatal().Err(err).Msg("load config")
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		stderr.Fatal().Err(err).Msg("init logging")
	}
	log.Info().Str("config", *configPath).Msg("radar starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		srv := metrics.Server(cfg.Metrics.Listen, reg, log)
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			_ = srv.Shutdown(shCtx)
		}()
		log.Info().Str("listen", cfg.Metrics.Listen).Msg("metrics listener started")
	}

	st, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()
	if cfg.Store.SeedFile != "" {
		seed, err := store.LoadSeed(cfg.Store.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("load seed file")
		}
		if err := seed.Apply(ctx, st); err != nil {
			log.Fatal().Err(err).Msg("apply seed file")
		}
		log.Info().Int("instruments", len(seed.Instruments)).
			Int("watches", len(seed.Watches)).
			Int("rules", len(seed.Rules)).
			Msg("seed applied")
	}

	var rec recorder.Recorder = recorder.Noop{}
	if cfg.Recorder.Enabled {
		sr, err := recorder.NewSQLiteRecorder(cfg.Recorder.Path)
		if err != nil {
			log.Warn().Err(err).Msg("open audit recorder failed, continuing without auditing")
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	var fetcher collector.Fetcher
	switch cfg.Fetch.Provider {
	case "rest":
		fetcher = collector.NewRESTFetcher(cfg.Fetch.BaseURL, cfg.Fetch.APIKey, cfg.Fetch.Proxy)
	case "mock":
		fetcher = collector.NewMockFetcher()
	default:
		fetcher = collector.NewYahooFetcher(cfg.Fetch.Proxy)
	}
	log.Info().Str("provider", fetcher.Name()).Msg("market-data provider ready")

	sweep := time.Duration(cfg.Cache.SweepIntervalSeconds) * time.Second
	caches := collector.Caches{
		Snapshots: cache.New[model.IndicatorSnapshot]("snapshots", cfg.Cache.MaxEntries,
			time.Duration(cfg.Cache.SnapshotTTLSeconds)*time.Second, cache.WithSweep[model.IndicatorSnapshot](sweep)),
		Margins: cache.New[model.MarginComparison]("margins", cfg.Cache.MaxEntries,
			time.Duration(cfg.Cache.MarginTTLSeconds)*time.Second, cache.WithSweep[model.MarginComparison](sweep)),
		History: cache.New[model.PriceSeries]("history", cfg.Cache.MaxEntries,
			time.Duration(cfg.Cache.HistoryTTLSeconds)*time.Second, cache.WithSweep[model.PriceSeries](sweep)),
	}
	defer caches.Snapshots.Close()
	defer caches.Margins.Close()
	defer caches.History.Close()

	if cfg.Cache.Redis.Enabled {
		rds := cache.NewRedis(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB, time.Duration(cfg.Cache.Redis.TTLSeconds)*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("redis unreachable")
		}
		defer rds.Close()
		caches.Redis = rds
		log.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("redis cache layer enabled")
	}

	col := collector.New(fetcher, collector.IndicatorParams{
		RSIPeriod:     cfg.Indicators.RSIPeriod,
		LongMA:        cfg.Indicators.LongMA,
		ShortMA:       cfg.Indicators.ShortMA,
		RelaxedLongMA: cfg.Indicators.RelaxedLongMA,
		MinHistory:    cfg.Scan.MinHistory,
		HistoryDays:   cfg.Scan.HistoryDays,
	}, cfg.FetchTimeout(), caches, log, m)

	classifier, err := strategy.New(strategy.Config{
		RSIOversold:    cfg.Strategy.RSIOversold,
		RSIOverbought:  cfg.Strategy.RSIOverbought,
		BiasOverheated: cfg.Strategy.BiasOverheated,
		CautionBreadth: cfg.Strategy.CautionBreadth,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init classifier")
	}

	var notif notifier.Notifier
	var tg *notifier.Telegram
	if cfg.Telegram.Enabled {
		tg = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Fetch.Proxy, log)
		notif = tg
	} else {
		notif = notifier.LogNotifier{Log: log}
		log.Info().Msg("telegram disabled, alerts go to the log")
	}

	disp := dispatch.New(st, st, notif, rec, m, log)
	disp.Concurrency = cfg.Scan.Concurrency

	eng, err := engine.New(engine.Config{
		ScanConcurrency: cfg.Scan.Concurrency,
		FXHistoryDays:   cfg.FX.HistoryDays,
		TolerancePct:    cfg.FX.TolerancePct,
		CautionBreadth:  cfg.Strategy.CautionBreadth,
		Swings: fx.SwingConfig{
			DailySpikePct:   cfg.FX.DailySpikePct,
			SwingPct:        cfg.FX.SwingPct,
			TrendPct:        cfg.FX.TrendPct,
			ShortWindowDays: cfg.FX.ShortWindowDays,
			LongWindowDays:  cfg.FX.LongWindowDays,
		},
	}, st, col, classifier, disp, notif, rec, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init engine")
	}

	sched := scheduler.New(ctx, eng, notif, log)
	if err := sched.RegisterAll(cfg.Scan.Cron, cfg.FX.AlertCron, cfg.FX.SummaryCron, cfg.FX.SummaryEnabled); err != nil {
		log.Fatal().Err(err).Msg("register cron jobs")
	}
	sched.Start()
	defer sched.Stop()

	if tg != nil && cfg.Telegram.Polling {
		go tg.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}
	if cfg.Scan.RunOnStart {
		log.Info().Msg("run_on_start enabled, scanning now")
		go sched.RunScanNow()
	}

	log.Info().Msg("radar is running")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
}
