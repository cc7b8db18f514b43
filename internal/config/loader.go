package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults. No CLI
// flags are bound here; callers apply flag overrides to the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PREPARSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("preparser")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".preparser"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("types", cfg.Types)
	v.SetDefault("max_parser_threads", cfg.MaxParserThreads)
	v.SetDefault("max_fetch_local_threads", cfg.MaxFetchLocalThreads)
	v.SetDefault("max_fetch_net_threads", cfg.MaxFetchNetThreads)
	v.SetDefault("max_thumbnailer_threads", cfg.MaxThumbnailerThreads)
	v.SetDefault("timeout", cfg.Timeout)

	v.SetDefault("fetch_meta_net.backend", cfg.FetchMetaNet.Backend)
	v.SetDefault("fetch_meta_net.base_url", cfg.FetchMetaNet.BaseURL)
	v.SetDefault("fetch_meta_net.follow_redirects", cfg.FetchMetaNet.FollowRedirects)
	v.SetDefault("fetch_meta_net.max_redirects", cfg.FetchMetaNet.MaxRedirects)
	v.SetDefault("fetch_meta_net.max_body_size", cfg.FetchMetaNet.MaxBodySize)
	v.SetDefault("fetch_meta_net.idle_conn_timeout", cfg.FetchMetaNet.IdleConnTimeout)
	v.SetDefault("fetch_meta_net.max_idle_conns", cfg.FetchMetaNet.MaxIdleConns)
	v.SetDefault("fetch_meta_net.user_agents", cfg.FetchMetaNet.UserAgents)
	v.SetDefault("fetch_meta_net.proxy.enabled", cfg.FetchMetaNet.Proxy.Enabled)
	v.SetDefault("fetch_meta_net.proxy.rotation", cfg.FetchMetaNet.Proxy.Rotation)
	v.SetDefault("fetch_meta_net.proxy.health_check", cfg.FetchMetaNet.Proxy.HealthCheck)
	v.SetDefault("fetch_meta_net.proxy.rotate_on_fail", cfg.FetchMetaNet.Proxy.RotateOnFail)
	v.SetDefault("fetch_meta_net.stealth.enabled", cfg.FetchMetaNet.Stealth.Enabled)
	v.SetDefault("fetch_meta_net.stealth.platform", cfg.FetchMetaNet.Stealth.Platform)
	v.SetDefault("fetch_meta_net.stealth.language", cfg.FetchMetaNet.Stealth.Language)

	v.SetDefault("media_store.uri", cfg.MediaStore.URI)
	v.SetDefault("media_store.database", cfg.MediaStore.Database)
	v.SetDefault("media_store.collection", cfg.MediaStore.Collection)
	v.SetDefault("media_store.timeout", cfg.MediaStore.Timeout)

	v.SetDefault("artwork.output_dir", cfg.Artwork.OutputDir)
	v.SetDefault("artwork.max_bytes", cfg.Artwork.MaxBytes)
	v.SetDefault("artwork.perceptual_dedup", cfg.Artwork.PerceptualDedup)
	v.SetDefault("artwork.hash_distance_bits", cfg.Artwork.HashDistanceBits)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.interval", cfg.Metrics.Interval)
}
