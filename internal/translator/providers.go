package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"pdf-layout-translator/internal/types"
)

const (
	BackendEino   = "eino"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// EinoProvider 通过 eino 的 OpenAI 兼容 ChatModel 调用（默认指向 Groq）
type EinoProvider struct {
	model model.BaseChatModel
	name  string
}

// NewEinoProvider 创建基于 eino 的结构化翻译客户端
func NewEinoProvider(ctx context.Context, cfg types.LLMConfig) (*EinoProvider, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	chatModelConfig := &einoopenai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		ResponseFormat: &einoopenai.ChatCompletionResponseFormat{
			Type: einoopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}
	if cfg.TimeoutSec > 0 {
		chatModelConfig.Timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	chatModel, err := einoopenai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &EinoProvider{model: chatModel, name: "eino:" + cfg.Model}, nil
}

func (p *EinoProvider) Name() string { return p.name }

func (p *EinoProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Content, nil
}

// OpenAIProvider 使用 go-openai 并开启 JSON 输出模式
type OpenAIProvider struct {
	client      *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIProvider(cfg types.LLMConfig) *OpenAIProvider {
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &OpenAIProvider{
		client:      goopenai.NewClientWithConfig(c),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (p *OpenAIProvider) Name() string { return "openai:" + p.model }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiProvider 使用 genai，要求 application/json 输出
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func NewGeminiProvider(ctx context.Context, cfg types.LLMConfig) (*GeminiProvider, error) {
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	m := cfg.GeminiModel
	if m == "" {
		m = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: c, model: m, temperature: cfg.Temperature, maxTokens: int32(cfg.MaxTokens)}, nil
}

func (p *GeminiProvider) Name() string { return "gemini:" + p.model }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := p.temperature
	res, err := p.client.Models.GenerateContent(ctx, p.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  p.maxTokens,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return res.Text(), nil
}

// NewProvider 按 cfg.Backend 选择实现；未配置密钥时返回 nil，编排器直接走回退策略
func NewProvider(ctx context.Context, cfg types.LLMConfig) (StructuredProvider, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendEino:
		if cfg.APIKey == "" {
			return nil, nil
		}
		p, err := NewEinoProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, nil
		}
		return NewOpenAIProvider(cfg), nil
	case BackendGemini:
		if cfg.GeminiKey == "" {
			return nil, nil
		}
		p, err := NewGeminiProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
