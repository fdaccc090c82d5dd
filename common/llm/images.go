package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
)

// ImageGenerator renders a single still frame from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type imageClient struct {
	openai openai.Client
	model  string
}

func NewImageGenerator(cfg Config) (ImageGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.ImageModelDallE3
	}

	return &imageClient{
		openai: openai.NewClient(requestOptions(cfg)...),
		model:  model,
	}, nil
}

func (c *imageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.openai.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          c.model,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1792x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image generate: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrEmptyResponse
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return data, nil
}
