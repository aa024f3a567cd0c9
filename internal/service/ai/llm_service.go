package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/config"
)

// Service streams replies from the configured chat model.
type Service struct {
	chatModel   model.BaseChatModel
	modelName   string
	temperature float32
}

// NewService creates the chat model selected by cfg.AI.Provider.
func NewService(ctx context.Context, cfg *config.Config, httpClient *http.Client) (*Service, error) {
	switch cfg.AI.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.Ark.NewChatModel(ctx, cfg.AI.Temperature)
		if err != nil {
			return nil, err
		}
		return NewServiceWithModel(chatModel, cfg.Ark.Model, cfg.AI.Temperature), nil
	case config.ProviderOpenAI, "":
		if !cfg.AI.Enabled() {
			return nil, errors.New("chat model or api key missing: set AI71_API_KEY and ai.model")
		}
		return NewServiceWithModel(NewOpenAIChatModel(cfg.AI, httpClient), cfg.AI.Model, cfg.AI.Temperature), nil
	default:
		return nil, errors.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}

// NewServiceWithModel wraps an existing chat model.
func NewServiceWithModel(chatModel model.BaseChatModel, modelName string, temperature float32) *Service {
	return &Service{
		chatModel:   chatModel,
		modelName:   modelName,
		temperature: temperature,
	}
}

// ModelName returns the model identifier requests are sent to.
func (s *Service) ModelName() string {
	return s.modelName
}

// Complete streams a reply for messages and returns the sanitized text.
// onDelta, when set, receives every non-empty fragment in arrival order.
// Failures never propagate: they come back as an "An error occurred: ..." reply.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message, onDelta func(string)) string {
	content, err := s.stream(ctx, messages, onDelta)
	if err != nil {
		log.Warn().Str("component", "ai").Str("model", s.modelName).Err(err).Msg("completion failed")
		return fmt.Sprintf("An error occurred: %v", err)
	}

	reply := CleanResponse(content)
	log.Info().Str("component", "ai").Str("model", s.modelName).Int("length", len(reply)).Msg("generated response")
	return reply
}

func (s *Service) stream(ctx context.Context, messages []*schema.Message, onDelta func(string)) (string, error) {
	if s.chatModel == nil {
		return "", errors.New("chat model not configured")
	}

	stream, err := s.chatModel.Stream(ctx, messages,
		model.WithModel(s.modelName),
		model.WithTemperature(s.temperature),
	)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		content.WriteString(chunk.Content)
		if onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	return content.String(), nil
}
