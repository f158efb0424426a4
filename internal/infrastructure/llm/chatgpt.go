package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ScholarshipScanner/internal/config"
)

// ChatClient talks to an OpenAI-compatible chat completions endpoint, rotating
// API keys through a KeyRing.
type ChatClient struct {
	endpoint     string
	model        string
	systemPrompt string
	keys         *KeyRing
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewChatClient builds a client from configuration.
func NewChatClient(cfg config.LLMConfig, keys *KeyRing, logger *slog.Logger) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ChatClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		keys:         keys,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a user message and returns the first answer. A daily
// quota response rotates to the next key and retries; other failures are returned.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.keys == nil {
		return "", fmt.Errorf("chat client is nil")
	}
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chat client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	for {
		key, index, err := c.keys.Current()
		if err != nil {
			return "", err
		}
		c.keys.Track(index)

		answer, quota, err := c.send(ctx, key, body)
		if quota {
			if !c.keys.Exhaust(index) {
				return "", ErrKeysExhausted
			}
			continue
		}
		return answer, err
	}
}

func (c *ChatClient) send(ctx context.Context, key string, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests && isDailyQuota(string(payload)) {
			return "", true, nil
		}
		return "", false, fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", false, fmt.Errorf("chat response has no choices")
	}

	if c.logger != nil {
		c.logger.Debug("chat completion received", "chars", len(decoded.Choices[0].Message.Content))
	}
	return decoded.Choices[0].Message.Content, false, nil
}

// isDailyQuota tells daily quota exhaustion apart from per-minute rate limits.
func isDailyQuota(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "perday") || strings.Contains(lower, "per day")
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a helpful assistant that extracts structured data from documents."
	}
	return prompt
}
