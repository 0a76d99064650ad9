package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	want := &Config{
		DefaultPartner: "DEFAULT",
		Timeout:        30 * time.Second,
		RedisTTL:       time.Hour,
		MasterWorkers:  4,
		ListenAddr:     ":8080",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromLookupOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := FromLookup(lookupFrom(map[string]string{
		"FORMFLOW_BASE_URL":       "http://localhost:9000",
		"FORMFLOW_FLOW_ID":        "PERSONAL_LOAN",
		"FORMFLOW_TIMEOUT":        "5s",
		"FORMFLOW_MASTER_WORKERS": "8",
		"FORMFLOW_VERBOSE":        "true",
		"FORMFLOW_LISTEN_ADDR":    "",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9000" || cfg.FlowID != "PERSONAL_LOAN" {
		t.Fatalf("unexpected strings: %+v", cfg)
	}
	if cfg.Timeout != 5*time.Second || cfg.MasterWorkers != 8 || !cfg.Verbose {
		t.Fatalf("unexpected typed values: %+v", cfg)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected empty value to fall back to the default, got %q", cfg.ListenAddr)
	}
}

func TestFromLookupInvalid(t *testing.T) {
	t.Parallel()

	if _, err := FromLookup(lookupFrom(map[string]string{"FORMFLOW_TIMEOUT": "soon"})); err == nil {
		t.Fatalf("expected invalid duration to fail")
	}
	if _, err := FromLookup(lookupFrom(map[string]string{"FORMFLOW_MASTER_WORKERS": "many"})); err == nil {
		t.Fatalf("expected invalid int to fail")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	if err := os.WriteFile(file, []byte("FORMFLOW_FIXTURE_DIR=./flows/demo\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("FORMFLOW_FIXTURE_DIR", "")
	os.Unsetenv("FORMFLOW_FIXTURE_DIR")

	cfg, err := Load(file, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FixtureDir != "./flows/demo" {
		t.Fatalf("expected value from env file, got %q", cfg.FixtureDir)
	}
}
