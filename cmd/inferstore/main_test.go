package main

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/jonwraymond/inferstore/cache"
	"github.com/jonwraymond/inferstore/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "collection")
	cfg.Observe.Logging.Enabled = false
	return cfg
}

func TestRun_Version(t *testing.T) {
	if err := run([]string{"--version"}); err != nil {
		t.Errorf("run(--version) error = %v", err)
	}
}

func TestRun_Check(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "collection")
	if err := run([]string{"--check", "--storage-dir", dir, "--log-level", "error"}); err != nil {
		t.Errorf("run(--check) error = %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if err := run([]string{"--check", "--mode", "replay"}); err == nil {
		t.Error("run() with an unknown mode should fail")
	}
	if err := run([]string{"--check", "--mode", "collect"}); err == nil {
		t.Error("collect mode without an upstream should fail")
	}
	if err := run([]string{"--no-such-flag"}); err == nil {
		t.Error("unknown flags should fail")
	}
}

func TestNewApp_Offline(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	if !a.ctrl.Offline() {
		t.Error("no upstream target should run offline")
	}
	if _, ok := a.store.(*cache.FileStore); !ok {
		t.Errorf("store = %T, want *cache.FileStore", a.store)
	}
	if got := a.health.CheckerNames(); !slices.Equal(got, []string{"storage", "disk"}) {
		t.Errorf("checkers = %v", got)
	}
	if err := a.check(context.Background()); err != nil {
		t.Errorf("check() error = %v", err)
	}
}

func TestNewApp_RedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.Redis.URL = "redis://" + mr.Addr()

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	if _, ok := a.store.(*cache.TieredStore); !ok {
		t.Errorf("store = %T, want *cache.TieredStore", a.store)
	}
	if !slices.Contains(a.health.CheckerNames(), "redis") {
		t.Errorf("checkers = %v, want redis", a.health.CheckerNames())
	}
	if err := a.check(context.Background()); err != nil {
		t.Errorf("check() error = %v", err)
	}
}

func TestNewApp_Collect(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "collect"
	// Nothing listens here; collect mode reports the upstream unhealthy.
	cfg.Upstream.Target = "127.0.0.1:1"

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	if a.ctrl.Offline() {
		t.Error("collect mode with a target should not be offline")
	}
	if !slices.Contains(a.health.CheckerNames(), "upstream") {
		t.Errorf("checkers = %v, want upstream", a.health.CheckerNames())
	}
	if err := a.check(context.Background()); err == nil {
		t.Error("check() should fail with the upstream down in collect mode")
	}
}

func TestNewApp_AuthWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Error("newApp() should reject auth without credentials")
	}
}
