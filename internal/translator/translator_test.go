package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

// fakeLLM 按调用顺序返回预设结果；respond 为 nil 时回显 "T:" 前缀的译文
type fakeLLM struct {
	calls   []string
	respond func(call int, prompt string) (string, error)
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.respond != nil {
		return f.respond(len(f.calls), prompt)
	}
	return echoTranslations(prompt), nil
}

// echoTranslations 从提示词里取回各段并加前缀
func echoTranslations(prompt string) string {
	start := strings.Index(prompt, "===SEGMENT===:\n\n") + len("===SEGMENT===:\n\n")
	end := strings.Index(prompt, "\n\nOUTPUT FORMAT (MANDATORY)")
	segs := strings.Split(prompt[start:end], SegmentSeparator)
	for i := range segs {
		segs[i] = "T:" + segs[i]
	}
	b, _ := json.Marshal(map[string][]string{"translations": segs})
	return string(b)
}

type fakeMT struct {
	calls []string
	err   error
}

func (f *fakeMT) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("G[%s>%s]:%s", source, target, text), nil
}

func newTestOrchestrator(primary StructuredProvider, fallback PhraseTranslator) (*Orchestrator, *[]time.Duration) {
	o := NewOrchestrator(OrchestratorConfig{
		Primary:  primary,
		Fallback: fallback,
		Delay:    DefaultBatchDelay,
		Log:      logger.Nop(),
	})
	var sleeps []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return o, &sleeps
}

func inputs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("segment %d", i)
	}
	return out
}

func TestBatchesKeepOrder(t *testing.T) {
	b := Batches(inputs(10), 8)
	require.Len(t, b, 2)
	assert.Len(t, b[0], 8)
	assert.Equal(t, []string{"segment 8", "segment 9"}, b[1])
	assert.Nil(t, Batches(nil, 8))
	assert.Len(t, Batches(inputs(3), 0), 1)
}

func TestTenInputsMakeTwoProviderCalls(t *testing.T) {
	llm := &fakeLLM{}
	mt := &fakeMT{}
	o, sleeps := newTestOrchestrator(llm, mt)

	var progress []int
	out, err := o.Translate(context.Background(), inputs(10), "en", "vi", func(done, total int, s Strategy) {
		assert.Equal(t, 2, total)
		assert.Equal(t, StrategyStructured, s)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	require.Len(t, llm.calls, 2)
	assert.Empty(t, mt.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, *sleeps)
	assert.Equal(t, []int{1, 2}, progress)
	require.Len(t, out, 10)
	for i, s := range out {
		assert.Equal(t, fmt.Sprintf("T:segment %d", i), s)
	}

	assert.Contains(t, llm.calls[0], "from English into Vietnamese")
	assert.Contains(t, llm.calls[0], "exactly 8 translated strings")
	assert.Contains(t, llm.calls[1], "exactly 2 items")
}

func TestCountMismatchFallsBackForThatBatchOnly(t *testing.T) {
	llm := &fakeLLM{respond: func(call int, prompt string) (string, error) {
		if call == 1 {
			return `{"translations":["only one"]}`, nil
		}
		return echoTranslations(prompt), nil
	}}
	mt := &fakeMT{}
	o, _ := newTestOrchestrator(llm, mt)

	var strategies []Strategy
	out, err := o.Translate(context.Background(), inputs(10), "en", "fr", func(_, _ int, s Strategy) {
		strategies = append(strategies, s)
	})
	require.NoError(t, err)

	assert.Equal(t, []Strategy{StrategyPhrase, StrategyStructured}, strategies)
	assert.Len(t, mt.calls, 8)
	assert.Equal(t, "G[en>fr]:segment 0", out[0])
	assert.Equal(t, "G[en>fr]:segment 7", out[7])
	assert.Equal(t, "T:segment 9", out[9])
}

func TestProviderErrorFallsBack(t *testing.T) {
	llm := &fakeLLM{respond: func(int, string) (string, error) { return "", errors.New("429 rate limited") }}
	mt := &fakeMT{}
	o, _ := newTestOrchestrator(llm, mt)

	out, err := o.Translate(context.Background(), inputs(3), "en", "de", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"G[en>de]:segment 0", "G[en>de]:segment 1", "G[en>de]:segment 2"}, out)
}

func TestFallbackFailureIsFatal(t *testing.T) {
	llm := &fakeLLM{respond: func(int, string) (string, error) { return "not json", nil }}
	mt := &fakeMT{err: errors.New("network down")}
	o, _ := newTestOrchestrator(llm, mt)

	_, err := o.Translate(context.Background(), inputs(9), "en", "de", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 1/2")
	assert.Contains(t, err.Error(), "network down")
}

func TestNoPrimaryUsesPhraseMT(t *testing.T) {
	mt := &fakeMT{}
	o, sleeps := newTestOrchestrator(nil, mt)
	out, err := o.Translate(context.Background(), inputs(2), "en", "it", nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Empty(t, *sleeps)
}

func TestCanceledContextStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &fakeLLM{respond: func(call int, prompt string) (string, error) {
		cancel()
		return echoTranslations(prompt), nil
	}}
	o, _ := newTestOrchestrator(llm, &fakeMT{})

	_, err := o.Translate(ctx, inputs(10), "en", "vi", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, llm.calls, 1)
}

func TestSleepContextHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestTranslateUnitsUsesBoxText(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeLLM{}, &fakeMT{})
	units := []Unit{
		{Page: 1, Class: layout.ClassTitle, Box: layout.ConsolidatedBox{Text: "Attention"}},
		{Page: 2, Class: layout.ClassText, Box: layout.ConsolidatedBox{Text: "Body"}},
	}
	out, err := o.TranslateUnits(context.Background(), units, "en", "vi", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"T:Attention", "T:Body"}, out)
}

func TestParseTranslations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		out     []string
		wantErr bool
	}{
		{"clean", `{"translations":["a","b"]}`, 2, []string{"a", "b"}, false},
		{"wrapped in prose", "Sure!\n```json\n{\"translations\":[\"a\"]}\n```", 1, []string{"a"}, false},
		{"think block", "<think>{draft}</think>\n{\"translations\":[\"x\"]}", 1, nil, true},
		{"count mismatch", `{"translations":["a"]}`, 2, nil, true},
		{"no object", "nothing here", 1, nil, true},
		{"bad json", "{translations: [}", 1, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTranslations(tt.content, tt.want)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.out, got)
		})
	}
}

func TestGoogleTranslator(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "en", q.Get("sl"))
		assert.Equal(t, "vi", q.Get("tl"))
		assert.Equal(t, "Hello. World.", q.Get("q"))
		io.WriteString(w, `[[["Xin chào. ","Hello. ",null],["Thế giới.","World.",null]],null,"en"]`)
	}))
	defer srv.Close()

	g := NewGoogleTranslator(GoogleTranslatorConfig{Endpoint: srv.URL, MaxRetries: 2, RetryDelay: time.Millisecond})
	out, err := g.Translate(context.Background(), "Hello. World.", "en", "vi")
	require.NoError(t, err)
	assert.Equal(t, "Xin chào. Thế giới.", out)
	assert.Equal(t, 2, attempts)

	out, err = g.Translate(context.Background(), "   ", "en", "vi")
	require.NoError(t, err)
	assert.Equal(t, "   ", out)
	assert.Equal(t, 2, attempts)
}

func TestGoogleTranslatorClientErrorIsNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewGoogleTranslator(GoogleTranslatorConfig{Endpoint: srv.URL, MaxRetries: 4, RetryDelay: time.Millisecond})
	_, err := g.Translate(context.Background(), "x", "en", "vi")
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestOpenAIProviderRequestsJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen/qwen3-32b", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"translations\":[\"a\"]}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(types.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "qwen/qwen3-32b", Temperature: 0.3, MaxTokens: 8192})
	out, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"translations":["a"]}`, out)
}

func TestEinoProviderRequestsJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen/qwen3-32b", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","object":"chat.completion","model":"qwen/qwen3-32b","choices":[{"index":0,"message":{"role":"assistant","content":"{\"translations\":[\"xin chào\"]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":4,"total_tokens":9}}`)
	}))
	defer srv.Close()

	p, err := NewEinoProvider(context.Background(), types.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "qwen/qwen3-32b", Temperature: 0.3, MaxTokens: 8192, TimeoutSec: 5})
	require.NoError(t, err)
	out, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"translations":["xin chào"]}`, out)
}

func TestNewProviderSelection(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, types.LLMConfig{Backend: "eino"})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ctx, types.LLMConfig{Backend: "eino", APIKey: "k", BaseURL: "https://api.groq.com/openai/v1", Model: "qwen/qwen3-32b"})
	require.NoError(t, err)
	assert.IsType(t, &EinoProvider{}, p)

	p, err = NewProvider(ctx, types.LLMConfig{Backend: "openai", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "openai:m", p.Name())

	p, err = NewProvider(ctx, types.LLMConfig{Backend: "gemini"})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewProvider(ctx, types.LLMConfig{Backend: "carrier-pigeon"})
	assert.Error(t, err)
}
