package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIImageRenderer renders through an OpenAI-compatible images API.
// Expected endpoint: POST {baseURL}/images/generations
// Expected response: {"data":[{"b64_json":"..."}]}
type OpenAIImageRenderer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	size    string
}

func NewOpenAIImageRenderer(baseURL, apiKey, model string) *OpenAIImageRenderer {
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIImageRenderer{
		client:  &http.Client{Timeout: 180 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		size:    "1536x1024",
	}
}

func (p *OpenAIImageRenderer) Name() string { return "openai" }

func (p *OpenAIImageRenderer) Render(ctx context.Context, prompt, dest string) (string, error) {
	payload := map[string]interface{}{
		"model":           p.model,
		"prompt":          prompt,
		"size":            p.size,
		"response_format": "b64_json",
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/images/generations", bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call image API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("image API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode image API response: %w", err)
	}
	if len(result.Data) == 0 || strings.TrimSpace(result.Data[0].B64JSON) == "" {
		return "", fmt.Errorf("image API returned no image data")
	}

	if err := writeBase64Image(dest, result.Data[0].B64JSON); err != nil {
		return "", err
	}
	return dest, nil
}
