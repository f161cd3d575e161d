package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSDWebUIURL is where a local stable-diffusion web UI listens.
const DefaultSDWebUIURL = "http://127.0.0.1:7860"

// SDWebUIRenderer is the HTTP fallback. It calls the txt2img endpoint and
// writes the first returned image.
type SDWebUIRenderer struct {
	client  *http.Client
	baseURL string
}

func NewSDWebUIRenderer(baseURL string, client *http.Client) *SDWebUIRenderer {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultSDWebUIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &SDWebUIRenderer{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (r *SDWebUIRenderer) Name() string { return "sdwebui" }

type txt2imgRequest struct {
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidance_scale"`
}

func (r *SDWebUIRenderer) Render(ctx context.Context, prompt, dest string) (string, error) {
	payload, err := json.Marshal(txt2imgRequest{
		Prompt:        prompt,
		Width:         1920,
		Height:        1080,
		Steps:         50,
		GuidanceScale: 7.5,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal txt2img payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call txt2img: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("txt2img returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode txt2img response: %w", err)
	}
	if len(result.Images) == 0 || result.Images[0] == "" {
		return "", fmt.Errorf("txt2img returned no images")
	}

	if err := writeBase64Image(dest, result.Images[0]); err != nil {
		return "", err
	}
	return dest, nil
}

// writeBase64Image decodes data and writes it to dest. Some servers prefix
// the payload with a data URI header.
func writeBase64Image(dest, data string) error {
	if i := strings.Index(data, ","); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("failed to decode image data: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("decoded image is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(dest, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
