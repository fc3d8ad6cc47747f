package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAI generates text through the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  shared.ChatModel
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI client for the given model.
func NewOpenAI(apiKey, model string, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		client: &client,
		model:  shared.ChatModel(model),
		logger: logger,
	}
}

// Name implements Client.
func (*OpenAI) Name() string { return "openai" }

// Generate implements Client.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            messages,
		Temperature:         openai.Float(float64(req.Temperature)),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai model %s: %w", o.model, ErrEmptyResponse)
	}

	text := resp.Choices[0].Message.Content
	o.logger.Debug("openai generation complete", "model", o.model, "chars", len(text))
	return text, nil
}
