package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

const defaultHuggingFaceBaseURL = "https://router.huggingface.co/hf-inference/models"

type huggingFaceConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// huggingFaceProvider talks to the feature-extraction pipeline. The endpoint
// answers a single string input with a bare vector and a list input with a
// matrix, and some models emit per-token vectors, so responses go through
// normalizeEmbeddings before they leave this file.
type huggingFaceProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type huggingFaceRequest struct {
	Inputs  interface{}            `json:"inputs"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func (p *huggingFaceProvider) Name() string {
	return "huggingface"
}

func (p *huggingFaceProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	var inputs interface{} = texts
	if len(texts) == 1 {
		inputs = texts[0]
	}
	data, err := json.Marshal(huggingFaceRequest{
		Inputs:  inputs,
		Options: map[string]interface{}{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/" + strings.Trim(model, "/") + "/pipeline/feature-extraction"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, wrapTransportError(p.Name(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportError(p.Name(), err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newProviderError(p.Name(), KindStatus, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 256))
	}
	out, err := normalizeEmbeddings(body, len(texts))
	if err != nil {
		if pe, ok := err.(*ProviderError); ok {
			pe.Provider = p.Name()
		}
		return nil, err
	}
	return out, nil
}

// normalizeEmbeddings converts any of the response shapes embedding endpoints
// are known to return into exactly n vectors.
func normalizeEmbeddings(body []byte, n int) ([][]float32, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, newProviderError("", KindDecode, 0, "empty response body")
	}
	var matrix [][]float32
	switch trimmed[0] {
	case '{':
		m, err := decodeEmbeddingObject(trimmed)
		if err != nil {
			return nil, err
		}
		matrix = m
	case '[':
		m, err := decodeEmbeddingArray(trimmed, n)
		if err != nil {
			return nil, err
		}
		matrix = m
	default:
		return nil, newProviderError("", KindDecode, 0, "response is not json")
	}
	if len(matrix) != n {
		return nil, newProviderError("", KindShape, 0, fmt.Sprintf("requested %d embeddings, got %d", n, len(matrix)))
	}
	for i, vec := range matrix {
		if len(vec) == 0 {
			return nil, newProviderError("", KindShape, 0, fmt.Sprintf("embedding %d is empty", i))
		}
	}
	return matrix, nil
}

type embeddingObject struct {
	Error json.RawMessage `json:"error"`
	Data  []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Embeddings [][]float32 `json:"embeddings"`
}

func decodeEmbeddingObject(raw []byte) ([][]float32, error) {
	var obj embeddingObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ProviderError{Kind: KindDecode, Err: err}
	}
	if len(obj.Error) > 0 && string(obj.Error) != "null" {
		return nil, newProviderError("", KindPayload, 0, errorMessage(obj.Error))
	}
	if len(obj.Data) > 0 {
		data := obj.Data
		sort.SliceStable(data, func(i, j int) bool {
			return data[i].Index < data[j].Index
		})
		out := make([][]float32, 0, len(data))
		for _, item := range data {
			out = append(out, item.Embedding)
		}
		return out, nil
	}
	if len(obj.Embeddings) > 0 {
		return obj.Embeddings, nil
	}
	return nil, newProviderError("", KindShape, 0, "response object has no embeddings")
}

func decodeEmbeddingArray(raw []byte, n int) ([][]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return [][]float32{flat}, nil
	}
	var matrix [][]float32
	if err := json.Unmarshal(raw, &matrix); err == nil {
		// a single input answered with several equally sized rows is token level output
		if n == 1 && len(matrix) > 1 {
			pooled, ok := meanPool(matrix)
			if !ok {
				return nil, newProviderError("", KindShape, 0, "token vectors have mixed dimensions")
			}
			return [][]float32{pooled}, nil
		}
		return matrix, nil
	}
	var tensor [][][]float32
	if err := json.Unmarshal(raw, &tensor); err != nil {
		return nil, &ProviderError{Kind: KindDecode, Err: err}
	}
	out := make([][]float32, 0, len(tensor))
	for _, tokens := range tensor {
		pooled, ok := meanPool(tokens)
		if !ok {
			return nil, newProviderError("", KindShape, 0, "token vectors have mixed dimensions")
		}
		out = append(out, pooled)
	}
	return out, nil
}

func meanPool(rows [][]float32) ([]float32, bool) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, false
	}
	dim := len(rows[0])
	sum := make([]float64, dim)
	for _, row := range rows {
		if len(row) != dim {
			return nil, false
		}
		for i, v := range row {
			sum[i] += float64(v)
		}
	}
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(len(rows)))
	}
	return out, true
}

func errorMessage(raw json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return truncate(string(raw), 256)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}

func newHuggingFaceProvider(args interface{}) (*huggingFaceProvider, error) {
	cfg := &huggingFaceConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultHuggingFaceBaseURL
	}
	return &huggingFaceProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  &http.Client{},
	}, nil
}

func createHuggingFaceEmbedFactory(args interface{}) (IEmbedProvider, error) {
	provider, err := newHuggingFaceProvider(args)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func init() {
	RegisterEmbed("huggingface", createHuggingFaceEmbedFactory)
}
