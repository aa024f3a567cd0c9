package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/kiddybot/internal/bootstrap"
	"github.com/zhouzirui/kiddybot/internal/config"
	"github.com/zhouzirui/kiddybot/internal/handler"
	handlerspeech "github.com/zhouzirui/kiddybot/internal/handler/speech"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/playback"
	"github.com/zhouzirui/kiddybot/internal/render"
	"github.com/zhouzirui/kiddybot/internal/service/chat"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("kiddybot-api exited")
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "kiddybot-api",
		Short:         "Serve the KiddyBot voice chat widget and API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(configPath)
			if err != nil {
				return errors.Wrap(err, "failed to load configuration")
			}
			if err := bootstrap.SetupLogging(cfg.Log, logLevel, os.Stderr); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.NewServices(ctx, cfg)
	if err != nil {
		return err
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService(personaStore, chat.NewFactory(chat.FactoryDeps{
		Completer:   services.AI,
		Synthesizer: services.Speech,
		AudioDir:    cfg.Speech.AudioDir,
		Player:      playback.Noop{},
	}))

	html, err := render.NewHTML("")
	if err != nil {
		return err
	}

	var speechSvc handlerspeech.SpeechService
	if services.Speech != nil {
		speechSvc = services.Speech
	}
	router := handler.NewRouter(personaStore, chatService, speechSvc, html)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("KiddyBot backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server listen")
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown")
		}
		return nil
	})

	return eg.Wait()
}
