package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	TaskType string `json:"task_type"`
}

type geminiProvider struct {
	apiKey   string
	baseURL  string
	taskType string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) newClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	cfg := &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, wrapTransportError(p.Name(), err)
	}
	return client, nil
}

func (p *geminiProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	client, err := p.newClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", classifyGeminiError(p.Name(), err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", newProviderError(p.Name(), KindPayload, 0, "empty response")
	}
	return text, nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	client, err := p.newClient(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	var config *genai.EmbedContentConfig
	if p.taskType != "" {
		config = &genai.EmbedContentConfig{TaskType: p.taskType}
	}
	resp, err := client.Models.EmbedContent(ctx, model, contents, config)
	if err != nil {
		return nil, classifyGeminiError(p.Name(), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, newProviderError(p.Name(), KindShape, 0, fmt.Sprintf("requested %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, item := range resp.Embeddings {
		if item == nil {
			return nil, newProviderError(p.Name(), KindShape, 0, "nil embedding in response")
		}
		out = append(out, item.Values)
	}
	return out, nil
}

func classifyGeminiError(provider string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: provider, Kind: KindStatus, Status: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &ProviderError{Provider: provider, Kind: KindStatus, Status: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return wrapTransportError(provider, err)
}

func newGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	taskType := strings.TrimSpace(cfg.TaskType)
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}
	return &geminiProvider{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		taskType: taskType,
	}, nil
}

func createGeminiFactory(args interface{}) (IGenerateProvider, error) {
	provider, err := newGeminiProvider(args)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	provider, err := newGeminiProvider(args)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func init() {
	Register("gemini", createGeminiFactory)
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
