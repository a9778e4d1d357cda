package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-rag/internal/config"
)

// Synthesizer converts answer text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TTSClient talks to an OpenAI-compatible /v1/audio/speech endpoint and
// returns WAV bytes.
type TTSClient struct {
	baseURL string
	key     string
	model   string
	voice   string
	client  *http.Client
}

func NewTTSClient(cfg *config.TTSConfig) *TTSClient {
	return &TTSClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		key:     cfg.Key,
		model:   cfg.Model,
		voice:   cfg.Voice,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := struct {
		Model          string `json:"model"`
		Input          string `json:"input"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}{
		Model:          c.model,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "wav",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/speech", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(c.key, "Bearer "))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech request failed: %d, %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
