// Package config loads senderwatch settings from a TOML file with viper,
// with env-var overrides under the SENDERWATCH_ prefix.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "SENDERWATCH"

	configDirName = ".senderwatch"
)

type Dashboard struct {
	BaseURL  string
	Cookies  map[string]string
	TokenTTL time.Duration

	GroupName   string
	AccountLock string
	AmountTake  string
	AmountKeep  string
	Priority    string
	ForceProxy  string
	UserPrice   string
}

type Cache struct {
	TTLMin        time.Duration
	TTLNormal     time.Duration
	TTLMax        time.Duration
	BurstDuration time.Duration
	BurstInterval time.Duration
}

type Watch struct {
	DiscoveryAttempts    int
	DiscoveryInterval    time.Duration
	TrackingAttempts     int
	TransitionalInterval time.Duration
	UnclassifiedInterval time.Duration
	AbsentRetryInterval  time.Duration
	IdleInterval         time.Duration
	ErrorBackoff         time.Duration
}

type Discord struct {
	Token     string
	ChannelID string
}

type Export struct {
	Enabled            bool
	QueuePath          string
	HistoryPath        string
	OutputPath         string
	MaxRetries         int
	PendingMinInterval time.Duration
	PendingMaxInterval time.Duration
	RetryMinInterval   time.Duration
	RetryMaxInterval   time.Duration
}

type Log struct {
	Level  string
	Pretty bool
}

type Config struct {
	Dashboard     Dashboard
	Cache         Cache
	Watch         Watch
	Discord       Discord
	Export        Export
	Log           Log
	DirectoryPath string
}

// Load reads the config file (default ~/.senderwatch/config.toml, or the
// given explicit path) on top of the built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	dataDir := filepath.Join(homeDir, configDirName)

	setDefaults(v, dataDir)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(dataDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("dashboard.token_ttl", "30m")

	v.SetDefault("cache.ttl_min", "5s")
	v.SetDefault("cache.ttl_normal", "15s")
	v.SetDefault("cache.ttl_max", "60s")
	v.SetDefault("cache.burst_duration", "60s")
	v.SetDefault("cache.burst_interval", "2500ms")

	v.SetDefault("watch.discovery_attempts", 15)
	v.SetDefault("watch.discovery_interval", "3s")
	v.SetDefault("watch.tracking_attempts", 40)
	v.SetDefault("watch.transitional_interval", "4s")
	v.SetDefault("watch.unclassified_interval", "5s")
	v.SetDefault("watch.absent_retry_interval", "2s")
	v.SetDefault("watch.idle_interval", "30s")
	v.SetDefault("watch.error_backoff", "30s")

	v.SetDefault("export.enabled", true)
	v.SetDefault("export.queue_path", filepath.Join(dataDir, "export-queue.toml"))
	v.SetDefault("export.history_path", filepath.Join(dataDir, "export-history.toml"))
	v.SetDefault("export.output_path", filepath.Join(dataDir, "exported-senders.csv"))
	v.SetDefault("export.max_retries", 50)
	v.SetDefault("export.pending_min_interval", "1s")
	v.SetDefault("export.pending_max_interval", "10s")
	v.SetDefault("export.retry_min_interval", "30s")
	v.SetDefault("export.retry_max_interval", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("storage.directory_path", filepath.Join(dataDir, "monitored.toml"))
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Dashboard: Dashboard{
			BaseURL:     v.GetString("dashboard.base_url"),
			Cookies:     v.GetStringMapString("dashboard.cookies"),
			TokenTTL:    v.GetDuration("dashboard.token_ttl"),
			GroupName:   v.GetString("dashboard.defaults.group_name"),
			AccountLock: v.GetString("dashboard.defaults.account_lock"),
			AmountTake:  v.GetString("dashboard.defaults.amount_take"),
			AmountKeep:  v.GetString("dashboard.defaults.amount_keep"),
			Priority:    v.GetString("dashboard.defaults.priority"),
			ForceProxy:  v.GetString("dashboard.defaults.force_proxy"),
			UserPrice:   v.GetString("dashboard.defaults.user_price"),
		},
		Cache: Cache{
			TTLMin:        v.GetDuration("cache.ttl_min"),
			TTLNormal:     v.GetDuration("cache.ttl_normal"),
			TTLMax:        v.GetDuration("cache.ttl_max"),
			BurstDuration: v.GetDuration("cache.burst_duration"),
			BurstInterval: v.GetDuration("cache.burst_interval"),
		},
		Watch: Watch{
			DiscoveryAttempts:    v.GetInt("watch.discovery_attempts"),
			DiscoveryInterval:    v.GetDuration("watch.discovery_interval"),
			TrackingAttempts:     v.GetInt("watch.tracking_attempts"),
			TransitionalInterval: v.GetDuration("watch.transitional_interval"),
			UnclassifiedInterval: v.GetDuration("watch.unclassified_interval"),
			AbsentRetryInterval:  v.GetDuration("watch.absent_retry_interval"),
			IdleInterval:         v.GetDuration("watch.idle_interval"),
			ErrorBackoff:         v.GetDuration("watch.error_backoff"),
		},
		Discord: Discord{
			Token:     v.GetString("discord.token"),
			ChannelID: v.GetString("discord.channel_id"),
		},
		Export: Export{
			Enabled:            v.GetBool("export.enabled"),
			QueuePath:          v.GetString("export.queue_path"),
			HistoryPath:        v.GetString("export.history_path"),
			OutputPath:         v.GetString("export.output_path"),
			MaxRetries:         v.GetInt("export.max_retries"),
			PendingMinInterval: v.GetDuration("export.pending_min_interval"),
			PendingMaxInterval: v.GetDuration("export.pending_max_interval"),
			RetryMinInterval:   v.GetDuration("export.retry_min_interval"),
			RetryMaxInterval:   v.GetDuration("export.retry_max_interval"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		DirectoryPath: v.GetString("storage.directory_path"),
	}
}
