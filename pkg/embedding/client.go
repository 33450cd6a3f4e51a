// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/llm"
	"juris-rag-go/pkg/retry"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the vector length every successful call returns.
	Dimensions() int
}

type openAICompatibleClient struct {
	api        *openai.Client
	deployment string
	dimensions int
	policy     retry.Policy
}

// NewClient returns a Client for the embedding deployment in cfg.
func NewClient(api *openai.Client, cfg config.ModelConfig, policy retry.Policy) Client {
	return &openAICompatibleClient{
		api:        api,
		deployment: cfg.EmbeddingDeployment,
		dimensions: cfg.Dimensions,
		policy:     policy,
	}
}

func (c *openAICompatibleClient) Dimensions() int {
	return c.dimensions
}

// CreateEmbedding embeds a single text, retrying transient failures.
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embedding input is empty")
	}
	return retry.Do(ctx, c.policy, "embedding", func(ctx context.Context) ([]float32, error) {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.deployment),
			Input: []string{text},
		})
		if err != nil {
			return nil, llm.Classify(fmt.Errorf("create embedding: %w", err))
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, errors.New("received empty embedding from api")
		}
		vector := resp.Data[0].Embedding
		if c.dimensions > 0 && len(vector) != c.dimensions {
			return nil, retry.Permanent(fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.dimensions, len(vector)))
		}
		return vector, nil
	})
}
