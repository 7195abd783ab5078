// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maniacs-ops/Chronicle-Engine/internal/admin"
	"github.com/maniacs-ops/Chronicle-Engine/internal/bridge"
	"github.com/maniacs-ops/Chronicle-Engine/internal/logging"
	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/network"
	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/routing"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/internal/views"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/config"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/jms"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/kafka"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/mqtt5"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/rabbitmq"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/solace"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/sse"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/plugins/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	logger = logger.With("host_id", cfg.Engine.HostID)

	codec, err := wire.Lookup(cfg.Engine.Codec)
	if err != nil {
		logger.Error("invalid engine codec", "codec", cfg.Engine.Codec, "error", err)
		os.Exit(1)
	}

	var frameLog *logging.FrameLogger
	if cfg.Engine.Debug {
		frameLog = logging.NewFrameLogger(logger.With("component", "frame"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := connectRedis(ctx, cfg.Redis, logger)
	m := metrics.New()

	hosting := routing.NewTable(cfg.Engine.HostID)
	hosting.ReplaceAll(cfg.ToRoutes())

	reg := registry.New(logger.With("component", "registry"))
	views.RegisterDefaults(reg, rdb)
	t := tree.New(reg, hosting, logger.With("component", "tree"))
	if _, err := m.TrackTree(t); err != nil {
		logger.Error("failed to track tree", "error", err)
		os.Exit(1)
	}

	mgr := network.NewManager(t, cfg.Engine.HostID, logger.With("component", "network"), m)
	pool := remote.NewPool(cfg.Engine.HostID, codec, mgr, logger.With("component", "pool"), frameLog, m)
	pool.SetCallTimeout(cfg.Engine.CallTimeout)
	pool.SetHosts(cfg.ToHosts())
	remote.RegisterDefaults(reg, pool)
	engine := remote.NewServer(t, mgr, logger.With("component", "engine"), frameLog, m)

	tracker, err := network.NewTracker(ctx, t)
	if err != nil {
		logger.Error("failed to open connectivity maps", "error", err)
		os.Exit(1)
	}

	plugs := plugins.NewRegistry(logger)
	plugs.RegisterEntrypoint(ws.New("engine", cfg.Engine.Port, engine, logger))
	registerEntrypoints(cfg, plugs, t, engine, logger)
	registerSinks(cfg, plugs, logger)
	plugs.ConnectSinks(ctx)

	relay := bridge.NewRelay(cfg.Relay.Buffer, plugs, logger.With("component", "relay"), m)
	taps := make([]core.RequestDescriptor, 0, len(cfg.Taps))
	for _, tap := range cfg.Taps {
		taps = append(taps, tap.Descriptor())
	}
	if err := relay.Attach(ctx, t, taps); err != nil {
		logger.Error("failed to attach relay", "error", err)
		os.Exit(1)
	}
	go relay.Run(ctx)

	adminSrv := admin.New(cfg.Admin, cfg.Engine.HostID, t, tracker, hosting, pool, m, logger.With("component", "admin"))
	adminSrv.Install(func(err error) {
		logger.Error("admin service failed", "error", err)
	})

	plugs.StartEntrypoints(ctx)
	go pool.Maintain(ctx, cfg.Engine.ReconnectInterval)

	watcher := config.NewWatcher(configPath, hosting, pool, logger)
	go watcher.Watch(ctx)

	logger.Info("chronicle engine started", "config", configPath, "port", cfg.Engine.Port, "codec", codec.Name())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down chronicle engine")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	relay.Detach()
	pool.Close()
	plugs.StopAll(shutdownCtx)
	mgr.DestroyAll()
	if err := adminSrv.Stop(); err != nil {
		logger.Warn("admin shutdown failed", "error", err)
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("chronicle engine stopped", "dropped_records", relay.Dropped())
}

// connectRedis returns nil when no redis address is configured, in which
// case maps requested with the redis store option are unsupported.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) redis.UniversalClient {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis unreachable", "addr", cfg.Addr, "error", err)
		os.Exit(1)
	}
	logger.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return rdb
}

func registerEntrypoints(cfg *config.Config, reg *plugins.Registry, t *tree.Tree, engine *remote.Server, logger *slog.Logger) {
	for _, e := range cfg.Entrypoints {
		switch e.Type {
		case "websocket":
			reg.RegisterEntrypoint(ws.New(e.Name, e.Port, engine, logger))
		case "sse":
			reg.RegisterEntrypoint(sse.New(e.Name, e.Port, t, logger))
		default:
			logger.Warn("unknown entrypoint type", "name", e.Name, "type", e.Type)
		}
	}
}

func registerSinks(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, s := range cfg.Sinks {
		if !s.Enabled {
			logger.Info("sink disabled", "name", s.Name, "type", s.Type)
			continue
		}
		var sink core.Sink
		switch s.Type {
		case "kafka":
			sink = kafka.New(s.Name, s.Config, logger)
		case "rabbitmq":
			sink = rabbitmq.New(s.Name, s.Config, logger)
		case "mqtt5":
			sink = mqtt5.New(s.Name, s.Config, logger)
		case "jms":
			sink = jms.New(s.Name, s.Config, logger)
		case "solace":
			sink = solace.New(s.Name, s.Config, logger)
		default:
			logger.Warn("unknown sink type", "name", s.Name, "type", s.Type)
			continue
		}
		if s.Debug {
			sink = plugins.Traced(sink, logger)
		}
		reg.RegisterSink(sink)
	}
}
