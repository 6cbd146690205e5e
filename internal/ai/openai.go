package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// openAIConfig also serves OpenAI compatible endpoints through base_url.
type openAIConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Temperature float32 `json:"temperature"`
	JSONMode    *bool   `json:"json_mode"`
}

type openAIProvider struct {
	client      *openai.Client
	temperature float32
	jsonMode    bool
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.client == nil {
		return "", ErrUnavailable
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: p.temperature,
	}
	if p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", newProviderError(p.Name(), KindPayload, 0, "response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if p.client == nil {
		return nil, ErrUnavailable
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, classifyOpenAIError(p.Name(), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, newProviderError(p.Name(), KindShape, 0, fmt.Sprintf("requested %d embeddings, got %d", len(texts), len(resp.Data)))
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Index < data[j].Index
	})
	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
}

func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := KindStatus
		if apiErr.HTTPStatusCode == 0 {
			kind = KindPayload
		}
		return &ProviderError{Provider: provider, Kind: kind, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: provider, Kind: KindStatus, Status: reqErr.HTTPStatusCode, Err: reqErr.Err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "unmarshal") || strings.Contains(err.Error(), "invalid character") {
		return &ProviderError{Provider: provider, Kind: KindDecode, Err: err}
	}
	return wrapTransportError(provider, err)
}

func newOpenAIProvider(args interface{}, defaultBaseURL string) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	provider := &openAIProvider{
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode == nil || *cfg.JSONMode,
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return provider, nil
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = defaultBaseURL
	}
	provider.client = openai.NewClientWithConfig(clientCfg)
	return provider, nil
}

func createOpenAIFactory(args interface{}) (IGenerateProvider, error) {
	provider, err := newOpenAIProvider(args, defaultOpenAIBaseURL)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func createGroqFactory(args interface{}) (IGenerateProvider, error) {
	provider, err := newOpenAIProvider(args, defaultGroqBaseURL)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func createOpenRouterFactory(args interface{}) (IGenerateProvider, error) {
	provider, err := newOpenAIProvider(args, defaultOpenRouterBaseURL)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	provider, err := newOpenAIProvider(args, defaultOpenAIBaseURL)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func init() {
	Register("openai", createOpenAIFactory)
	Register("groq", createGroqFactory)
	Register("openrouter", createOpenRouterFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
