package nlquery

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ChatCompleter sends a system and a user prompt to a language model
// and returns the completion text.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	ValidateWithLLM bool
}

func LoadConfigFromEnv() Config {
	return Config{
		APIKey:          os.Getenv("OPENAI_API_KEY"),
		BaseURL:         env("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:           env("OPENAI_MODEL", "gpt-4o-mini"),
		ValidateWithLLM: os.Getenv("NLQUERY_LLM_VALIDATION") == "true",
	}
}

func env(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

type openAICompleter struct {
	client *resty.Client
	model  string
}

// NewOpenAICompleter returns a ChatCompleter backed by an OpenAI
// compatible chat completions endpoint.
func NewOpenAICompleter(cfg Config) ChatCompleter {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(30 * time.Second)

	return &openAICompleter{client: client, model: cfg.Model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *openAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result := chatResponse{}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
			Temperature: 0,
		}).
		SetResult(&result).
		Post("/v1/chat/completions")

	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("chat completion failed with status %s", resp.Status())
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
