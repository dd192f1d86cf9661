package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"astroarena/config"
	"astroarena/server"
	"astroarena/session"
	"astroarena/store"
)

// AstroArena 入口：加载配置，启动 HTTP + WebSocket 中继服务与会话清理
func main() {
	var envFile, addr string
	flag.StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	flag.StringVar(&addr, "addr", "", "server listen address, overrides ADDR")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel, cfg.LogStdout); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer server.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 数据库不可用时降级运行：实时中继照常，飞船与排行榜接口返回 503
	st := store.Open(ctx, cfg.Store, cfg.DSN(), server.L())

	registry := session.NewRegistry(session.NewMemoryStore(), session.Options{
		DefaultMaxPlayers: cfg.DefaultMaxPlayers,
		WorldWidth:        cfg.WorldWidth,
		WorldHeight:       cfg.WorldHeight,
		HostPolicy:        session.HostPolicy(cfg.HostPolicy),
		Logger:            server.L().Named("session"),
	})

	srv := server.New(server.Options{
		Registry:        registry,
		Store:           st,
		SendQueueSize:   cfg.SendQueueSize,
		EmptySessionTTL: cfg.EmptySessionTTL,
		SweepInterval:   cfg.SweepInterval,
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv.Router()}

	go func() {
		server.Log.Infof("AstroArena listening on %s (store=%s hostPolicy=%s)", cfg.Addr, cfg.Store, cfg.HostPolicy)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()
	go srv.RunSweeper(ctx)

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs := httpSrv.Shutdown(shutdownCtx)
	srv.Close()
	errs = multierr.Append(errs, st.Close())
	if errs != nil {
		server.Log.Errorf("shutdown: %v", errs)
	}
}
