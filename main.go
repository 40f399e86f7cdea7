package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"idlearena/server"
	"idlearena/store"
)

// IdleArena 入口：启动 HTTP + WebSocket 服务，或运维账号数据
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	envFile string
	cfg     server.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "idlearena",
		Short: "Authoritative game-state server for a small idle RPG arena",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := server.LoadConfig(envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// 命令行参数覆盖环境变量
			applyFlags(cmd, &loaded)
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	def := server.DefaultConfig()
	pf := root.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	pf.String("store", def.Store.Kind, "account store: memory, file, redis, postgres (env: IDLEARENA_STORE)")
	pf.String("accounts-file", def.Store.FilePath, "accounts file for the file store (env: IDLEARENA_ACCOUNTS_FILE)")
	pf.String("redis-url", def.Store.Redis.URL, "redis URL for the redis store (env: IDLEARENA_REDIS_URL)")
	pf.String("postgres-dsn", "", "postgres DSN for the postgres store (env: IDLEARENA_POSTGRES_DSN)")
	pf.String("log-level", def.Log.Level, "log level: debug, info, warn, error (env: IDLEARENA_LOG_LEVEL)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAccountsCmd())
	return root
}

// applyFlags 只覆盖显式设置过的参数
func applyFlags(cmd *cobra.Command, c *server.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("store", &c.Store.Kind)
	str("accounts-file", &c.Store.FilePath)
	str("redis-url", &c.Store.Redis.URL)
	str("postgres-dsn", &c.Store.PostgresDSN)
	str("log-level", &c.Log.Level)
	str("addr", &c.Addr)
	str("static", &c.StaticDir)
	if flags.Changed("log-stderr") {
		c.Log.Stderr, _ = flags.GetBool("log-stderr")
	}
	if flags.Changed("tick") {
		c.TickInterval, _ = flags.GetDuration("tick")
	}
}

func newServeCmd() *cobra.Command {
	def := server.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", def.Addr, "server listen address, e.g. :10000 (env: IDLEARENA_ADDR)")
	cmd.Flags().String("static", def.StaticDir, "static client directory (env: IDLEARENA_STATIC_DIR)")
	cmd.Flags().Bool("log-stderr", false, "also log to stderr (env: IDLEARENA_LOG_STDERR)")
	cmd.Flags().Duration("tick", def.TickInterval, "simulation tick interval (env: IDLEARENA_TICK_INTERVAL)")
	return cmd
}

func serve(parent context.Context) error {
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer server.SyncLogger()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
	}
	defer st.Close()

	if parent == nil {
		parent = context.Background()
	}
	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := server.NewManager(cfg, st)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		mgr.Run(ctx)
	}()

	srv := &http.Server{Addr: cfg.Addr, Handler: mgr.Routes(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		server.Log.Infof("IdleArena listening on %s (store=%s); open http://localhost%v/", cfg.Addr, cfg.Store.Kind, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		server.Log.Errorw("listen failed", "addr", cfg.Addr, "error", err)
		stop()
		<-loopDone
		return err
	}

	server.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnw("http shutdown", "error", err)
	}
	// 事件循环保存全部在线玩家后退出，写协程完成最终落盘
	<-loopDone
	return nil
}
