package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
)

// ErrNoAPIKey is returned when the configured key variable is unset.
var ErrNoAPIKey = errors.New("assistant API key is not set")

// OpenAIClient completes prompts with the OpenAI Responses API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client from cfg. The key is read from the
// environment variable named by cfg.APIKeyEnv.
func NewOpenAIClient(cfg config.AssistantConfig) (*OpenAIClient, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: set %s", ErrNoAPIKey, cfg.APIKeyEnv)
	}

	client := openai.NewClient(
		option.WithAPIKey(key),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &OpenAIClient{client: &client, model: cfg.Model}, nil
}

// Complete sends prompt with instructions as the system prompt.
func (c *OpenAIClient) Complete(ctx context.Context, instructions, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.model),
		Instructions: param.NewOpt(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai responses error: %w", err)
	}
	return resp.OutputText(), nil
}
