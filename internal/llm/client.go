// Package llm is a small client for OpenAI-compatible chat completion
// endpoints, used as the optional remote assistant behind the chatbot.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidResponse = errors.New("invalid llm response")
	ErrEmptyQuestion   = errors.New("question is empty")
)

const defaultSystemPrompt = `أنت مساعد لتعليم الكيمياء لطلاب المرحلة الثانوية.
أجب باللغة العربية الفصحى المبسطة في فقرة قصيرة.
إذا لم يكن السؤال عن الكيمياء فاعتذر بلطف واقترح موضوعاً كيميائياً.`

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	SystemPrompt string
	MaxTokens    int
}

type Client struct {
	baseURL      string
	apiKey       string
	model        string
	timeout      time.Duration
	systemPrompt string
	maxTokens    int
	httpClient   *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        model,
		timeout:      cfg.Timeout,
		systemPrompt: systemPrompt,
		maxTokens:    cfg.MaxTokens,
		httpClient:   &http.Client{},
	}, nil
}

// Ask sends one question with the tutor system prompt and returns the
// assistant's text.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": truncateText(question, 2000)},
		},
		"max_tokens":  c.maxTokens,
		"temperature": 0.4,
	}
	raw, err := c.doJSON(ctx, "/v1/chat/completions", body)
	if err != nil {
		return "", err
	}
	content, err := extractAssistantContent(raw)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", ErrInvalidResponse
	}
	return content, nil
}

func (c *Client) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm request failed, status=%d body=%s", resp.StatusCode, truncateText(strings.TrimSpace(string(respBody)), 300))
	}
	return respBody, nil
}

// extractAssistantContent accepts both the plain string content and the
// list-of-parts content shape.
func extractAssistantContent(raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	switch v := resp.Choices[0].Message.Content.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", ErrInvalidResponse
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	default:
		return "", ErrInvalidResponse
	}
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
