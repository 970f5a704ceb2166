// Package openai implements text generation over the OpenAI Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/millionx-hackathon/educational-voice-agent/internal/generation"
)

// Config configures the generator.
type Config struct {
	BaseURL         string
	APIKeyEnv       string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
}

// Generator implements domain.Generator and domain.StructuredGenerator.
// Requests are never retried.
type Generator struct {
	client          openai.Client
	model           string
	maxOutputTokens int
}

func New(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	return newGenerator(key, cfg), nil
}

func newGenerator(key string, cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Generator{
		client: openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.BaseURL),
			option.WithRequestTimeout(cfg.Timeout),
			option.WithMaxRetries(0),
		),
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
	}
}

func (g *Generator) params(system, user string) responses.ResponseNewParams {
	p := responses.ResponseNewParams{
		Model:           g.model,
		MaxOutputTokens: openai.Int(int64(g.maxOutputTokens)),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(user, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if system != "" {
		p.Instructions = openai.String(system)
	}
	return p
}

// Generate returns the model's text output for the prompt.
func (g *Generator) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Responses.New(ctx, g.params(system, user))
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("openai generate: empty output")
	}
	return text, nil
}

// GenerateJSON asks for output conforming to schema and decodes it into out.
func (g *Generator) GenerateJSON(ctx context.Context, name string, schema map[string]any, system, user string, out any) error {
	p := g.params(system, user)
	p.Text = responses.ResponseTextConfigParam{
		Format: responses.ResponseFormatTextConfigUnionParam{
			OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
				Name:        name,
				Schema:      schema,
				Strict:      openai.Bool(true),
				Description: openai.String(name + " JSON"),
				Type:        "json_schema",
			},
		},
	}
	resp, err := g.client.Responses.New(ctx, p)
	if err != nil {
		return fmt.Errorf("openai generate json: %w", err)
	}
	if err := generation.DecodeJSON(resp.OutputText(), out); err != nil {
		return fmt.Errorf("openai generate json: %w", err)
	}
	return nil
}
