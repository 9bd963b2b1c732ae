package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Chunking.TargetTokens != 400 || cfg.Chunking.OverlapTokens != 60 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.HighScore != 0.8 || cfg.Retrieval.MediumScore != 0.5 {
		t.Errorf("unexpected retrieval bands: %+v", cfg.Retrieval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.docchat.yml")

	original := DefaultConfig()
	original.Provider = ProviderOllama
	original.Model = "llama3"
	original.Port = 9090
	original.DataDir = "custom-data"
	original.Retrieval.TopK = 8

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.DataDir != original.DataDir {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, original.DataDir)
	}
	if loaded.Retrieval.TopK != 8 {
		t.Errorf("retrieval.top_k: got %d, want 8", loaded.Retrieval.TopK)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.Provider != ProviderOpenAI {
		t.Errorf("missing file did not fall back to defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_PORT", "7070")
	t.Setenv("DOCCHAT_PROVIDER", "ollama")
	t.Setenv("DOCCHAT_RETRIEVAL__TOP_K", "9")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("env port override ignored: %d", cfg.Port)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("env provider override ignored: %q", cfg.Provider)
	}
	if cfg.Retrieval.TopK != 9 {
		t.Errorf("nested env override ignored: %d", cfg.Retrieval.TopK)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"missing provider", func(c *Config) { c.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Provider = "carrier-pigeon" }},
		{"missing model", func(c *Config) { c.Model = "" }},
		{"zero target tokens", func(c *Config) { c.Chunking.TargetTokens = 0 }},
		{"overlap >= target", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.TargetTokens }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"min_score out of range", func(c *Config) { c.Retrieval.MinScore = 1.5 }},
		{"medium above high", func(c *Config) { c.Retrieval.MediumScore = 0.9; c.Retrieval.HighScore = 0.7 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutSec = 0 }},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid config", c.name)
		}
	}
}

func TestDefaultModels(t *testing.T) {
	model, embedding := DefaultModels(ProviderOllama)
	if model != "llama3" || embedding != "nomic-embed-text" {
		t.Errorf("ollama defaults: %q / %q", model, embedding)
	}
	// Unknown providers fall back to the OpenAI defaults.
	model, _ = DefaultModels(ProviderType("other"))
	if model != "gpt-4o-mini" {
		t.Errorf("fallback model: %q", model)
	}
}
