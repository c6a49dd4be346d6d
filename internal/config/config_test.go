package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if cfg != want {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linelogd.yaml")
	if err := os.WriteFile(path, []byte("port: 9001\ntick_period: 1m\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Port)
	}
	if cfg.TickPeriod != "1m" {
		t.Errorf("TickPeriod = %q, want 1m", cfg.TickPeriod)
	}
	// Untouched fields keep their defaults.
	if cfg.Capacity != Defaults().Capacity {
		t.Errorf("Capacity = %d, want default %d", cfg.Capacity, Defaults().Capacity)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linelogd.yaml")
	if err := os.WriteFile(path, []byte("port: [this is not an int"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error for malformed YAML")
	}
}

func TestManagerReloadIgnoresPortAndCapacityChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linelogd.yaml")
	if err := os.WriteFile(path, []byte("port: 9000\ncapacity: 10\ntick_period: 10s\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var got Config
	m.OnReload(func(c Config) { got = c })
	if got.TickPeriod != "10s" {
		t.Fatalf("initial OnReload call got %+v", got)
	}

	if err := os.WriteFile(path, []byte("port: 9999\ncapacity: 99\ntick_period: 30s\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.Reload()

	cur := m.Get()
	if cur.Port != 9000 || cur.Capacity != 10 {
		t.Errorf("port/capacity should not change on reload, got port=%d capacity=%d", cur.Port, cur.Capacity)
	}
	if cur.TickPeriod != "30s" {
		t.Errorf("TickPeriod should reload, got %q", cur.TickPeriod)
	}
	if got.TickPeriod != "30s" {
		t.Errorf("observer should see the reloaded TickPeriod, got %q", got.TickPeriod)
	}
}
