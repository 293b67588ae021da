package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mathline/server/internal/command"
	"github.com/mathline/server/internal/config"
	"github.com/mathline/server/internal/core"
	"github.com/mathline/server/internal/game"
	"github.com/mathline/server/internal/room"
	"github.com/mathline/server/internal/service"
	"github.com/mathline/server/internal/store"
	"github.com/mathline/server/internal/task"
)

var rootCmd = &cobra.Command{
	Use:   "mathline-server",
	Short: "Line-oriented TCP server hosting the equation-guessing game",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(config.Load())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().String("addr", ":5000", "listen address")
	rootCmd.Flags().String("metrics-addr", ":9090", "metrics listen address")
	rootCmd.Flags().Int("capacity", 128, "max concurrent connections")
	rootCmd.Flags().String("data-dir", "data", "directory holding players.txt and equations.txt")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag(config.KeyListenAddr, rootCmd.Flags().Lookup("addr"))
	viper.BindPFlag(config.KeyMetricsAddr, rootCmd.Flags().Lookup("metrics-addr"))
	viper.BindPFlag(config.KeyCapacity, rootCmd.Flags().Lookup("capacity"))
	viper.BindPFlag(config.KeyDataDir, rootCmd.Flags().Lookup("data-dir"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.Flags().Lookup("log-level"))
}

func initConfig() {
	config.SetDefaults()
	viper.SetEnvPrefix("MATHLINE")
	viper.AutomaticEnv()
}

func run(cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	fs := afero.NewOsFs()
	players, err := store.NewPlayerStore(fs, filepath.Join(cfg.DataDir, "players.txt"), logger)
	if err != nil {
		return err
	}
	bank, err := store.NewEquationBank(fs, filepath.Join(cfg.DataDir, "equations.txt"), game.ValidEquation, logger)
	if err != nil {
		return err
	}

	var rooms *room.Manager
	rooms = room.NewManager(logger, func(r *room.Room, rounds int) room.Session {
		return game.NewMathGame(r, rooms, players, bank, rounds, logger)
	})

	services := service.NewRegistry(logger, func(r *service.Registry) {
		service.Register(r, rooms)
		service.Register(r, players)
		service.Register(r, bank)
	})

	dispatcher := command.NewDispatcher(logger, "/", command.Deps{
		Rooms:   rooms,
		Players: players,
		Bank:    bank,
	})

	newWorker := func(conn net.Conn, ctx *core.Context, reg *service.Registry) core.Worker {
		return core.NewConn(conn, ctx, reg, dispatcher, logger,
			task.NewFixedCount[core.Worker]("login-hint", 3, 30*time.Second,
				func(ctx context.Context, w core.Worker) error {
					if w.Identity() == "" {
						w.Send("Hint: /register or /login to start playing")
					}
					return nil
				}),
		)
	}

	srv := core.NewServer(cfg.ListenAddr, cfg.Capacity, services, core.DefaultContext, newWorker, logger,
		task.NewLoop[*core.Server]("server-stats", time.Minute,
			func(ctx context.Context, s *core.Server) error {
				logger.Info("server stats", "clients", len(s.Clients()), "rooms", rooms.Len())
				return nil
			}),
	)
	if err := srv.Start(); err != nil {
		return err
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	srv.Stop()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
