package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const geminiDefaultAPIKeyEnv = "GEMINI_API_KEY"

// GeminiConfig configures the Gemini-backed invoker.
type GeminiConfig struct {
	Model     string
	APIKey    string
	APIKeyEnv string
}

// Gemini invokes models through the Google Gen AI SDK.
type Gemini struct {
	model  string
	client *genai.Client
}

// NewGemini constructs a Gemini invoker against the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		envKey := strings.TrimSpace(cfg.APIKeyEnv)
		if envKey == "" {
			envKey = geminiDefaultAPIKeyEnv
		}
		apiKey = strings.TrimSpace(os.Getenv(envKey))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set api_key or api_key_env)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{model: model, client: client}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Invoke executes a single generateContent request.
func (g *Gemini) Invoke(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Input), cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generateContent: %w", err)
	}

	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return Response{}, fmt.Errorf("gemini response did not contain output text")
	}

	return Response{Text: output, Provider: g.Name()}, nil
}
