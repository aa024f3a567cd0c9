package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/kiddybot/internal/config"
)

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)

// OpenAIChatModel adapts any OpenAI-compatible completion endpoint (AI71 by
// default) to eino's chat model interface.
type OpenAIChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIChatModel builds a model bound to cfg. httpClient may be nil.
func NewOpenAIChatModel(cfg config.AIConfig, httpClient *http.Client) *OpenAIChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	return &OpenAIChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Generate runs a blocking completion.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req := m.buildRequest(input, opts...)

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream opens a streaming completion and forwards each delta as a message chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req := m.buildRequest(input, opts...)
	req.Stream = true

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "open completion stream")
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				sw.Send(nil, fmt.Errorf("completion stream panic: %v", r))
			}
			stream.Close()
			sw.Close()
		}()

		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				sw.Send(nil, errors.Wrap(recvErr, "receive completion chunk"))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			chunk := &schema.Message{
				Role:    schema.Assistant,
				Content: resp.Choices[0].Delta.Content,
			}
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()

	return sr, nil
}

func (m *OpenAIChatModel) buildRequest(input []*schema.Message, opts ...model.Option) openai.ChatCompletionRequest {
	modelName := m.model
	temperature := m.temperature
	options := model.GetCommonOptions(&model.Options{
		Model:       &modelName,
		Temperature: &temperature,
	}, opts...)

	messages := make([]openai.ChatCompletionMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Messages: messages,
	}
	if options.Model != nil {
		req.Model = *options.Model
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	return req
}
