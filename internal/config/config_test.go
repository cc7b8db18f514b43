package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

func TestValidateRejectsUnknownDomainType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Types = []string{"parse", "bogus"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for an unknown domain type")
	}
}

func TestValidateRejectsZeroThreadPools(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxParserThreads = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for max_parser_threads == 0")
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchMetaNet.Backend = "smoke-signal"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for an unsupported fetch_meta_net backend")
	}
}

func TestValidateIgnoresFetchMetaNetFieldsWhenDomainNotConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Types = []string{"parse"}
	cfg.FetchMetaNet.Backend = ""
	cfg.FetchMetaNet.MaxBodySize = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected a parse-only config to validate regardless of unused fetch_meta_net fields, got: %v", err)
	}
}
