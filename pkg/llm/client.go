// Package llm provides a client for chat completions and image description
// against an Azure OpenAI or OpenAI-compatible endpoint.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/log"
	"juris-rag-go/pkg/retry"
)

// ErrVisionDisabled is returned by DescribeImage when no vision deployment is configured.
var ErrVisionDisabled = errors.New("vision deployment not configured")

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete sends a system+user conversation at temperature 0 and returns the
	// first choice's content.
	Complete(ctx context.Context, messages []Message) (string, error)
	// DescribeImage asks the vision deployment about a single image.
	DescribeImage(ctx context.Context, prompt string, image []byte, contentType string) (string, error)
	// VisionEnabled reports whether DescribeImage can succeed.
	VisionEnabled() bool
}

// NewOpenAI builds the go-openai client for cfg on top of the shared HTTP pool.
func NewOpenAI(cfg config.ModelConfig, httpClient *http.Client) *openai.Client {
	var clientCfg openai.ClientConfig
	if strings.EqualFold(cfg.Provider, "azure") {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// deployments are addressed by their exact names
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	if cfg.RequestsPerSecond > 0 {
		clientCfg.HTTPClient = throttled(httpClient, cfg.RequestsPerSecond)
	}
	return openai.NewClientWithConfig(clientCfg)
}

type openAIClient struct {
	api              *openai.Client
	chatDeployment   string
	visionDeployment string
	policy           retry.Policy

	// chat and vision trip independently so captioning failures during
	// ingestion never block the ask path.
	chatBreaker   *gobreaker.CircuitBreaker
	visionBreaker *gobreaker.CircuitBreaker
}

// NewClient returns a Client using the chat and vision deployments from cfg.
func NewClient(api *openai.Client, cfg config.ModelConfig, policy retry.Policy) Client {
	return &openAIClient{
		api:              api,
		chatDeployment:   cfg.ChatDeployment,
		visionDeployment: cfg.VisionDeployment,
		policy:           policy,
		chatBreaker:      newBreaker("chat-completions"),
		visionBreaker:    newBreaker("image-descriptions"),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		// a rejected request says nothing about the service's health
		IsSuccessful: func(err error) bool {
			return err == nil || IsClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[LLMClient] circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// temperatureZero is how go-openai sends an explicit 0; a literal 0 is omitted
// from the request and the service default applies.
const temperatureZero = math.SmallestNonzeroFloat32

func (c *openAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.chatDeployment,
		Temperature: temperatureZero,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return c.send(ctx, c.chatBreaker, "chat completion", req)
}

func (c *openAIClient) VisionEnabled() bool {
	return c.visionDeployment != ""
}

func (c *openAIClient) DescribeImage(ctx context.Context, prompt string, image []byte, contentType string) (string, error) {
	if !c.VisionEnabled() {
		return "", ErrVisionDisabled
	}
	if contentType == "" {
		contentType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))
	req := openai.ChatCompletionRequest{
		Model:       c.visionDeployment,
		Temperature: temperatureZero,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}},
	}
	return c.send(ctx, c.visionBreaker, "image description", req)
}

func (c *openAIClient) send(ctx context.Context, breaker *gobreaker.CircuitBreaker, name string, req openai.ChatCompletionRequest) (string, error) {
	return retry.Do(ctx, c.policy, name, func(ctx context.Context) (string, error) {
		out, err := breaker.Execute(func() (interface{}, error) {
			resp, err := c.api.CreateChatCompletion(ctx, req)
			if err != nil {
				return nil, err
			}
			if len(resp.Choices) == 0 {
				return nil, errors.New("chat completion returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return "", retry.Permanent(fmt.Errorf("%s: %w", name, err))
			}
			return "", Classify(fmt.Errorf("%s: %w", name, err))
		}
		return out.(string), nil
	})
}
