package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/announce"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/config"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/db"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/discovery"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/httpapi"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/ingest"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/metrics"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/migrate"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"precision", cfg.Precision,
		"sendDiscovery", cfg.SendDiscovery,
		"discoveryPrefix", cfg.DiscoveryPrefix,
		"birthTopic", cfg.BirthTopic,
		"cacheBackend", cfg.CacheBackend,
		"cacheFile", cfg.CacheFile,
		"cacheLockFile", cfg.CacheLockFile,
		"mqttHost", cfg.MQTTHost,
		"mqttPort", cfg.MQTTPort,
		"mqttPrefix", cfg.MQTTPrefix,
		"mqttClientID", cfg.MQTTClientID,
		"mqttQoS", cfg.MQTTQoS,
	)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	cache := announce.NewCache(store, announce.NewFileLock(cfg.CacheLockFile), logger)

	// Birth handler is set before Connect so the first on-connect subscribe uses it.
	client := mqtt.NewClient(cfg, logger, m)
	client.SetBirthHandler(func() error {
		if err := cache.ClearAll(context.Background()); err != nil {
			return err
		}
		m.CacheCleared()
		return nil
	})

	pipeline := ingest.NewPipeline(ingest.Options{
		Precision: cfg.Precision,
		Builder:   discovery.NewBuilder(cfg),
		Cache:     cache,
		Announcer: client,
		Metrics:   m,
		Logger:    logger,
	})
	mux := httpapi.NewMux(httpapi.Deps{
		Pipeline:  pipeline,
		Publisher: client,
		MQTT:      client,
		Metrics:   m,
		Announce:  cfg.SendDiscovery,
		Logger:    logger,
	})

	// Short initial connect so a missing broker does not block startup; paho keeps retrying.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = client.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Warn("mqtt connection failed (continuing, will retry)", "error", err)
	}

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		client.Disconnect()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		client.Disconnect()
		return err
	}

	logger.Info("mqtt disconnecting")
	client.Disconnect()

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// openStore wipes the previous run's announcement state and opens a fresh store.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (announce.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.BackendSQLite:
		if err := announce.Reset(append(announce.SQLiteArtifacts(cfg.CacheFile), cfg.CacheLockFile)...); err != nil {
			return nil, nil, err
		}
		conn, err := db.Open(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Run(ctx, conn, logger); err != nil {
			_ = db.Close(conn)
			return nil, nil, err
		}
		return announce.NewSQLiteStore(conn), closeDB(conn, logger), nil
	default:
		if err := announce.Reset(cfg.CacheFile, cfg.CacheLockFile); err != nil {
			return nil, nil, err
		}
		return announce.NewFileStore(cfg.CacheFile), func() {}, nil
	}
}

func closeDB(conn *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(conn); err != nil {
			logger.Error("db close", "error", err)
		}
	}
}
