package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const (
	openaiDefaultBaseURL   = "https://api.openai.com/v1"
	openaiDefaultAPIKeyEnv = "OPENAI_API_KEY"
	openaiDefaultTimeout   = 120 * time.Second
)

// OpenAIConfig configures the OpenAI-backed invoker.
type OpenAIConfig struct {
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// OpenAI invokes models through the OpenAI Responses API.
type OpenAI struct {
	model  string
	client openai.Client
}

// NewOpenAI constructs an OpenAI invoker. The API key is taken from the
// config, falling back to the configured environment variable.
func NewOpenAI(cfg OpenAIConfig, httpClient *http.Client) (*OpenAI, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		envKey := strings.TrimSpace(cfg.APIKeyEnv)
		if envKey == "" {
			envKey = openaiDefaultAPIKeyEnv
		}
		apiKey = strings.TrimSpace(os.Getenv(envKey))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required (set api_key or api_key_env)")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openaiDefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(timeout),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAI{
		model:  model,
		client: openai.NewClient(opts...),
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Invoke executes a single Responses API request.
func (o *OpenAI) Invoke(ctx context.Context, req Request) (Response, error) {
	resp, err := o.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        o.model,
		Instructions: openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Input),
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai responses.create: %w", err)
	}
	if msg := strings.TrimSpace(resp.Error.Message); msg != "" {
		return Response{}, fmt.Errorf("openai response failed: %s", msg)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return Response{}, fmt.Errorf("openai response did not contain output text")
	}

	return Response{Text: output, Provider: o.Name()}, nil
}
