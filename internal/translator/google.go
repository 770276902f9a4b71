package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pdf-layout-translator/internal/logger"
)

// DefaultGoogleEndpoint Google 网页翻译接口
const DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator 逐条调用 Google 翻译，失败按固定间隔重试
type GoogleTranslator struct {
	endpoint   string
	client     *http.Client
	maxRetries uint64
	retryDelay time.Duration
}

// GoogleTranslatorConfig 零值取默认
type GoogleTranslatorConfig struct {
	Endpoint   string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

func NewGoogleTranslator(cfg GoogleTranslatorConfig) *GoogleTranslator {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &GoogleTranslator{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: timeout},
		maxRetries: uint64(retries),
		retryDelay: cfg.RetryDelay,
	}
}

// Translate 空白文本原样返回
func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryDelay), g.maxRetries), ctx)

	return backoff.RetryWithData(func() (string, error) {
		out, err := g.request(ctx, text, source, target)
		if err != nil {
			logger.Debug("google translate attempt failed", logger.Err(err))
		}
		return out, err
	}, policy)
}

func (g *GoogleTranslator) request(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("google translate: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf("google translate: status %d", resp.StatusCode))
	}
	out, err := parseGoogleResponse(body)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	return out, nil
}

// parseGoogleResponse 响应形如 [[["译文","原文",...],...],...]，拼接各句译文
func parseGoogleResponse(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode google response: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty google response")
	}
	var sentences [][]any
	if err := json.Unmarshal(raw[0], &sentences); err != nil {
		return "", fmt.Errorf("decode google sentences: %w", err)
	}
	var sb strings.Builder
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		if t, ok := s[0].(string); ok {
			sb.WriteString(t)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("google response has no translation")
	}
	return sb.String(), nil
}
