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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/VideoChat/internal/adapters/http"
	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/app/orch"
	"github.com/dkeye/VideoChat/internal/config"
	"github.com/dkeye/VideoChat/internal/core"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "videochat-relay",
	Short: "Signaling relay for two-person WebRTC video chat",
	Long: `videochat-relay pairs anonymous participants into two-person rooms and
relays offer, answer and ICE candidate messages between them over a websocket.
Media flows peer to peer and never touches the server.`,
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.Int("port", 3000, "HTTP listen port (env PORT)")
	f.String("mode", "release", "gin mode: debug, release or test")
	f.String("config-env", "dev", "config file suffix, reads config/config.<env>.yaml")
	f.String("log-level", "info", "log level")
	f.String("static", "./public", "directory served under /static")
}

func setLogLevel(name string) {
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", name).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader, err := config.NewLoader(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)
	loader.Watch(func(next *config.Config) {
		setLogLevel(next.LogLevel)
	})

	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		return err
	}
	rooms := core.NewRoomRegistry(
		core.WithCapacity(cfg.RoomCapacity),
		core.WithReservationTTL(cfg.ReservationTTL),
	)
	o := orch.New(app.NewRegistry(), rooms, policy)
	mm := app.NewMatchmaker(rooms)

	engine := router.SetupRouter(ctx, cfg, o, mm)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(cfg, engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Video chat relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		mm.Run(gctx, cfg.ReservationTTL)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("videochat-relay failed")
		os.Exit(1)
	}
}
