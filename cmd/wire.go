package cmd

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/adapters/directory/tomlfile"
	csvsink "github.com/bnema/senderwatch/internal/adapters/export/csvfile"
	"github.com/bnema/senderwatch/internal/adapters/gateway/dashboard"
	discordnotify "github.com/bnema/senderwatch/internal/adapters/notify/discord"
	"github.com/bnema/senderwatch/internal/cache"
	"github.com/bnema/senderwatch/internal/config"
	"github.com/bnema/senderwatch/internal/export"
	"github.com/bnema/senderwatch/internal/logging"
	"github.com/bnema/senderwatch/internal/ports"
	"github.com/bnema/senderwatch/internal/watch"
)

type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	clock  ports.Clock

	store     *cache.Store
	gateway   *dashboard.Client
	directory ports.AccountDirectory
	notifier  ports.Notifier
	tracker   *watch.Tracker
	monitor   *watch.Monitor

	exportStore  *export.QueueStore
	exportWorker *export.Worker
}

func wireApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	clock := ports.SystemClock{}

	ttl := cache.NewTTLController(cache.TTLLevels{
		Min:    cfg.Cache.TTLMin,
		Normal: cfg.Cache.TTLNormal,
		Max:    cfg.Cache.TTLMax,
	}, logger)
	burst := cache.NewBurstSession(cfg.Cache.BurstDuration, clock, logger)
	store := cache.NewStore(ttl, burst, clock, logger)

	gateway, err := dashboard.NewClient(dashboard.Config{
		BaseURL:  cfg.Dashboard.BaseURL,
		Cookies:  cfg.Dashboard.Cookies,
		TokenTTL: cfg.Dashboard.TokenTTL,
		Defaults: dashboard.SubmissionDefaults{
			GroupName:   cfg.Dashboard.GroupName,
			AccountLock: cfg.Dashboard.AccountLock,
			AmountTake:  cfg.Dashboard.AmountTake,
			AmountKeep:  cfg.Dashboard.AmountKeep,
			Priority:    cfg.Dashboard.Priority,
			ForceProxy:  cfg.Dashboard.ForceProxy,
			UserPrice:   cfg.Dashboard.UserPrice,
		},
	}, nil, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("wire dashboard gateway: %w", err)
	}

	directory, err := tomlfile.NewRepository(cfg.DirectoryPath)
	if err != nil {
		return nil, fmt.Errorf("wire account directory: %w", err)
	}

	var notifier ports.Notifier
	if cfg.Discord.Token != "" {
		notifier, err = discordnotify.New(cfg.Discord.Token, cfg.Discord.ChannelID, logger)
		if err != nil {
			return nil, fmt.Errorf("wire discord notifier: %w", err)
		}
	} else {
		logger.Warn().Msg("discord token not configured, notifications disabled")
	}

	tracker := watch.NewTracker(store, gateway, directory, watch.NewLogReporter(logger), clock, watch.TrackerConfig{
		DiscoveryAttempts:    cfg.Watch.DiscoveryAttempts,
		DiscoveryInterval:    cfg.Watch.DiscoveryInterval,
		TrackingAttempts:     cfg.Watch.TrackingAttempts,
		BurstInterval:        cfg.Cache.BurstInterval,
		TransitionalInterval: cfg.Watch.TransitionalInterval,
		UnclassifiedInterval: cfg.Watch.UnclassifiedInterval,
		AbsentRetryInterval:  cfg.Watch.AbsentRetryInterval,
	}, logger)

	monitor := watch.NewMonitor(store, gateway, directory, notifier, clock, watch.MonitorConfig{
		IdleInterval: cfg.Watch.IdleInterval,
		ErrorBackoff: cfg.Watch.ErrorBackoff,
	}, logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		store:     store,
		gateway:   gateway,
		directory: directory,
		notifier:  notifier,
		tracker:   tracker,
		monitor:   monitor,
	}

	if cfg.Export.Enabled {
		exportStore, err := export.NewQueueStore(cfg.Export.QueuePath)
		if err != nil {
			return nil, fmt.Errorf("wire export queue: %w", err)
		}
		history, err := export.NewHistory(cfg.Export.HistoryPath, export.DefaultRetention)
		if err != nil {
			return nil, fmt.Errorf("wire export history: %w", err)
		}
		sink, err := csvsink.New(cfg.Export.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("wire export sink: %w", err)
		}

		a.exportStore = exportStore
		a.exportWorker = export.NewWorker(exportStore, sink, history, clock, export.WorkerConfig{
			PendingMinInterval: cfg.Export.PendingMinInterval,
			PendingMaxInterval: cfg.Export.PendingMaxInterval,
			RetryMinInterval:   cfg.Export.RetryMinInterval,
			RetryMaxInterval:   cfg.Export.RetryMaxInterval,
			MaxRetries:         cfg.Export.MaxRetries,
		}, logger)
	}

	return a, nil
}
