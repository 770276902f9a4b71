// Package translator 批量翻译编排：结构化 LLM 为主策略，逐条机器翻译为回退策略
package translator

import (
	"context"

	"pdf-layout-translator/internal/layout"
)

// Unit 一个待翻译的文本框，结果按位置一一对应
type Unit struct {
	Page  int
	Class layout.BoxClass
	Box   layout.ConsolidatedBox
}

// Strategy 某一批次最终采用的翻译策略
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyPhrase     Strategy = "phrase"
)

// StructuredProvider 接收完整提示词，返回模型原始输出
type StructuredProvider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// PhraseTranslator 单条文本翻译，语言参数为两字母代码
type PhraseTranslator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Progress 每完成一个批次调用一次
type Progress func(done, total int, strategy Strategy)
