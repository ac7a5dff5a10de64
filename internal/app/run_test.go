package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/config"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		AppEnv:          "dev",
		LogLevel:        slog.LevelInfo,
		HTTPAddr:        freeAddr(t),
		Precision:       2,
		CacheBackend:    backend,
		CacheFile:       filepath.Join(dir, "known_sensors"),
		CacheLockFile:   filepath.Join(dir, "known_sensors.lock"),
		MQTTHost:        "127.0.0.1",
		MQTTPort:        freePort(t),
		MQTTKeepAlive:   60,
		MQTTPrefix:      "ambientweather",
		MQTTClientID:    "app-test",
		MQTTOnlineTopic: "online",
		DocumentTopic:   "sensor",
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().String()
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestOpenStore_ResetsPreviousRun(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			ctx := context.Background()

			store, closeStore, err := openStore(ctx, cfg, slog.Default())
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			if err := store.Save(ctx, map[string]bool{"AA_uv-index": true}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			closeStore()
			if err := os.WriteFile(cfg.CacheLockFile, nil, 0o644); err != nil {
				t.Fatal(err)
			}

			store, closeStore, err = openStore(ctx, cfg, slog.Default())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer closeStore()
			ids, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(ids) != 0 {
				t.Errorf("ids after restart = %v, want empty", ids)
			}
			if _, err := os.Stat(cfg.CacheLockFile); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("lock file survived restart: %v", err)
			}
		})
	}
}

func TestRun_ServesWithoutBrokerAndStops(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(15 * time.Second)
	for {
		resp, err := client.Get("http://" + cfg.HTTPAddr + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("server never became healthy")
		}
		time.Sleep(100 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
