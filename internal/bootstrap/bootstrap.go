// Package bootstrap loads configuration and builds the services shared by the binaries.
package bootstrap

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/config"
	"github.com/zhouzirui/kiddybot/internal/proxy"
	"github.com/zhouzirui/kiddybot/internal/service/ai"
	"github.com/zhouzirui/kiddybot/internal/service/speech"
)

// Services holds everything a binary needs to run conversations.
type Services struct {
	Config *config.Config
	AI     *ai.Service
	// Speech is nil when no ElevenLabs key is configured.
	Speech *speech.Synthesizer
}

// LoadConfig reads .env (when present) and the configuration file.
func LoadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}
	return config.Load(path)
}

// SetupLogging configures the global zerolog logger.
// levelOverride wins over the configured level when non-empty.
func SetupLogging(cfg config.LogConfig, levelOverride string, out io.Writer) error {
	level := cfg.Level
	if levelOverride != "" {
		level = levelOverride
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)

	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// NewServices builds the chat adapter and, when configured, the speech adapter.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	httpClient, err := proxy.NewHTTPClient(cfg.HTTP.SocksProxy, cfg.HTTP.Timeout)
	if err != nil {
		return nil, err
	}

	aiSvc, err := ai.NewService(ctx, cfg, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "initialize ai service")
	}
	log.Info().Str("provider", cfg.AI.Provider).Str("model", aiSvc.ModelName()).Msg("AI service initialized")

	services := &Services{Config: cfg, AI: aiSvc}
	if cfg.Speech.Enabled() {
		services.Speech = speech.NewSynthesizer(cfg.Speech.Model(), httpClient)
		log.Info().Str("voice", cfg.Speech.VoiceID).Msg("speech synthesis enabled")
	} else {
		log.Warn().Msg("speech api key not configured, replies will not be voiced")
	}

	return services, nil
}
