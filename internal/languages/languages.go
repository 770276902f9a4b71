// Package languages 支持的语言表：两字母代码与显示名称互查
package languages

import (
	"fmt"
	"sort"
)

var codeToName = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
	"fr": "French",
	"es": "Spanish",
	"de": "German",
	"pt": "Portuguese",
	"it": "Italian",
	"nl": "Dutch",
	"pl": "Polish",
	"tr": "Turkish",
	"id": "Indonesian",
	"sv": "Swedish",
	"cs": "Czech",
	"hu": "Hungarian",
	"ro": "Romanian",
	"ca": "Catalan",
	"tl": "Tagalog",
	"et": "Estonian",
}

var nameToCode = func() map[string]string {
	m := make(map[string]string, len(codeToName))
	for c, n := range codeToName {
		m[n] = c
	}
	return m
}()

// Name 返回代码对应的名称
func Name(code string) (string, bool) {
	n, ok := codeToName[code]
	return n, ok
}

// Code 返回名称对应的代码
func Code(name string) (string, bool) {
	c, ok := nameToCode[name]
	return c, ok
}

// MustName 用于已校验过的代码，未知代码原样返回
func MustName(code string) string {
	if n, ok := codeToName[code]; ok {
		return n
	}
	return code
}

// Choices 按名称排序的语言列表
func Choices() []string {
	out := make([]string, 0, len(codeToName))
	for _, n := range codeToName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ResolvePair 将源/目标语言名称解析为代码
func ResolvePair(source, target string) (string, string, error) {
	sc, ok1 := Code(source)
	tc, ok2 := Code(target)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("Unsupported language: %s to %s", source, target)
	}
	return sc, tc, nil
}
