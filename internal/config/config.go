// Package config defines the engine's configuration record and the
// mechanics for loading it, following the teacher's viper-backed,
// mapstructure-tagged struct pattern.
package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the preparser engine. Types,
// MaxParserThreads, MaxThumbnailerThreads and Timeout are the
// engine-construction record; MaxFetchLocalThreads and MaxFetchNetThreads
// size the fetch-meta-local and fetch-meta-net executors, which do not use
// MaxParserThreads. The remaining sections tune each domain worker
// implementation, logging and metrics.
type Config struct {
	Types                 []string      `mapstructure:"types"                   yaml:"types"`
	MaxParserThreads      int           `mapstructure:"max_parser_threads"      yaml:"max_parser_threads"`
	MaxFetchLocalThreads  int           `mapstructure:"max_fetch_local_threads" yaml:"max_fetch_local_threads"`
	MaxFetchNetThreads    int           `mapstructure:"max_fetch_net_threads"   yaml:"max_fetch_net_threads"`
	MaxThumbnailerThreads int           `mapstructure:"max_thumbnailer_threads" yaml:"max_thumbnailer_threads"`
	Timeout               time.Duration `mapstructure:"timeout"                 yaml:"timeout"`

	FetchMetaNet FetchMetaNetConfig `mapstructure:"fetch_meta_net" yaml:"fetch_meta_net"`
	MediaStore   MediaStoreConfig   `mapstructure:"media_store"    yaml:"media_store"`
	Artwork      ArtworkConfig      `mapstructure:"artwork"        yaml:"artwork"`
	Logging      LoggingConfig      `mapstructure:"logging"        yaml:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"        yaml:"metrics"`
}

// FetchMetaNetConfig controls the network metadata-provider worker.
type FetchMetaNetConfig struct {
	Backend         string        `mapstructure:"backend"           yaml:"backend"` // http, browser
	BaseURL         string        `mapstructure:"base_url"          yaml:"base_url"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	Proxy           ProxyConfig   `mapstructure:"proxy"             yaml:"proxy"`
	Stealth         StealthConfig `mapstructure:"stealth"           yaml:"stealth"`
}

// ProxyConfig controls outbound proxy rotation for the fetch-meta-net
// HTTP and browser backends.
type ProxyConfig struct {
	Enabled      bool     `mapstructure:"enabled"        yaml:"enabled"`
	Rotation     string   `mapstructure:"rotation"       yaml:"rotation"` // round_robin, random
	URLs         []string `mapstructure:"urls"           yaml:"urls"`
	HealthCheck  bool     `mapstructure:"health_check"   yaml:"health_check"`
	RotateOnFail bool     `mapstructure:"rotate_on_fail" yaml:"rotate_on_fail"`
}

// StealthConfig tunes the optional browser backend's fingerprint.
type StealthConfig struct {
	Enabled  bool   `mapstructure:"enabled"  yaml:"enabled"`
	Viewport [2]int `mapstructure:"viewport" yaml:"viewport"`
	Platform string `mapstructure:"platform" yaml:"platform"`
	Language string `mapstructure:"language" yaml:"language"`
}

// MediaStoreConfig points the fetch-meta-local worker at a local media
// library index.
type MediaStoreConfig struct {
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// ArtworkConfig controls thumbnail/art acquisition.
type ArtworkConfig struct {
	OutputDir        string `mapstructure:"output_dir"        yaml:"output_dir"`
	MaxBytes         int64  `mapstructure:"max_bytes"         yaml:"max_bytes"`
	PerceptualDedup  bool   `mapstructure:"perceptual_dedup"  yaml:"perceptual_dedup"`
	HashDistanceBits int    `mapstructure:"hash_distance_bits" yaml:"hash_distance_bits"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json
	Output string `mapstructure:"output" yaml:"output"` // stderr, stdout
}

// MetricsConfig controls whether the engine's stats snapshot is
// periodically logged.
type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Types:                 []string{"parse", "fetch_meta_local", "fetch_meta_net", "thumbnail"},
		MaxParserThreads:      4,
		MaxFetchLocalThreads:  4,
		MaxFetchNetThreads:    8,
		MaxThumbnailerThreads: 2,
		Timeout:               30 * time.Second,
		FetchMetaNet: FetchMetaNetConfig{
			Backend:         "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			Proxy: ProxyConfig{
				Rotation:     "round_robin",
				HealthCheck:  true,
				RotateOnFail: true,
			},
			Stealth: StealthConfig{
				Viewport: [2]int{1366, 768},
				Platform: "Win32",
				Language: "en-US",
			},
		},
		MediaStore: MediaStoreConfig{
			Database:   "preparser",
			Collection: "media_library",
			Timeout:    10 * time.Second,
		},
		Artwork: ArtworkConfig{
			OutputDir:        "./artwork",
			MaxBytes:         25 * 1024 * 1024,
			PerceptualDedup:  true,
			HashDistanceBits: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
	}
}
