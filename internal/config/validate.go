package config

import "fmt"

var validDomainTypes = map[string]bool{
	"parse": true, "fetch_meta_local": true, "fetch_meta_net": true, "thumbnail": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if len(cfg.Types) == 0 {
		return fmt.Errorf("types must name at least one domain")
	}
	for _, t := range cfg.Types {
		if !validDomainTypes[t] {
			return fmt.Errorf("types: %q is not a known domain (valid: parse, fetch_meta_local, fetch_meta_net, thumbnail)", t)
		}
	}

	if cfg.MaxParserThreads < 1 {
		return fmt.Errorf("max_parser_threads must be >= 1, got %d", cfg.MaxParserThreads)
	}
	if cfg.MaxFetchLocalThreads < 1 {
		return fmt.Errorf("max_fetch_local_threads must be >= 1, got %d", cfg.MaxFetchLocalThreads)
	}
	if cfg.MaxFetchNetThreads < 1 {
		return fmt.Errorf("max_fetch_net_threads must be >= 1, got %d", cfg.MaxFetchNetThreads)
	}
	if cfg.MaxThumbnailerThreads < 1 {
		return fmt.Errorf("max_thumbnailer_threads must be >= 1, got %d", cfg.MaxThumbnailerThreads)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", cfg.Timeout)
	}

	if usesDomain(cfg.Types, "fetch_meta_net") {
		if cfg.FetchMetaNet.Backend != "http" && cfg.FetchMetaNet.Backend != "browser" {
			return fmt.Errorf("fetch_meta_net.backend must be 'http' or 'browser', got %q", cfg.FetchMetaNet.Backend)
		}
		if cfg.FetchMetaNet.MaxBodySize <= 0 {
			return fmt.Errorf("fetch_meta_net.max_body_size must be > 0")
		}
		if cfg.FetchMetaNet.Proxy.Enabled {
			if cfg.FetchMetaNet.Proxy.Rotation != "round_robin" && cfg.FetchMetaNet.Proxy.Rotation != "random" {
				return fmt.Errorf("fetch_meta_net.proxy.rotation must be 'round_robin' or 'random', got %q", cfg.FetchMetaNet.Proxy.Rotation)
			}
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

func usesDomain(types []string, domain string) bool {
	for _, t := range types {
		if t == domain {
			return true
		}
	}
	return false
}
