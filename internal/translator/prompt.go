package translator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SegmentSeparator 批次内各段文本之间的分隔符
const SegmentSeparator = "\n===SEGMENT===\n"

const batchPromptTemplate = `You are an expert technical translator and text reconstructor for academic PDFs. You translate content from %[1]s into %[2]s with strict structure and formatting rules. Your task is to process multiple input segments and output a SINGLE JSON object.

CRITICAL RULES - FOLLOW EXACTLY:

1. OUTPUT FORMAT (CRITICAL)
    - Output ONLY a valid JSON object.
    - The JSON MUST HAVE EXACTLY:
        {
          "translations": ["...", "...", ...]
        }
    - The array MUST contain exactly %[3]d translated strings.
    - Keep the order exactly identical to the input.
    - NO explanations, NO comments, NO markdown, NO code blocks, NO introductory text.

2. TEXT RECONSTRUCTION (Mandatory BEFORE translation)
    - Fix broken words from PDF extraction.
        Examples:
            "A ttention" -> "Attention"
            "Trans former" -> "Transformer"
            "sim ilar ity" -> "similarity"
            "d _ k" -> "d_k"
    - Remove PDF artifacts like random characters, mis-extracted spacing, page numbers.
    - Merge fragmented math expressions while preserving meaning.

3. TERMINOLOGY & TECHNICAL NO-TRANSLATE RULES
    - DO NOT translate technical terms, proper nouns, model names, library names, function names, method names, or section headers representing a concept.
    - If a word is capitalized in the middle of a sentence and looks like a concept or name, KEEP IT IN ORIGINAL ENGLISH.
    - Strictly avoid formats like "Term (Translated)" or "Translated (Term)".
    - Never add explanations for terms.

4. MATH CLEANING (Extremely Strict)
    - Convert garbled PDF math into clean linear text.
    - NO LaTeX, NO $...$, NO \frac, \sqrt.
    - Allowed formatting: "/" for division, "^" for exponent, "_" for subscripts.
    - Remove spaces inside variables: | t 1 | -> |t1|
    - Example:
        Input: "sim ilar ity = (t 1 . t 2) / | t 1 | | t2|"
        Output: "similarity = (t1 . t2) / |t1||t2|"

5. TRANSLATION RULES
    - Translate to %[2]s with natural, concise, professional academic style.
    - Preserve math exactly.
    - Preserve technical terms exactly.
    - Preserve URLs, emails, bullet structure if present.
    - No rewriting style; keep structure but improve clarity.

INPUT FORMAT

The input consists of multiple text segments, separated by ===SEGMENT===:

%[4]s

OUTPUT FORMAT (MANDATORY)

Output ONLY this JSON object and nothing else:

{
  "translations": ["translated text 1", "translated text 2", ...]
}
Ensure the array has exactly %[3]d items in the same order.
`

// BuildBatchPrompt 语言参数为显示名称（如 "English"）
func BuildBatchPrompt(texts []string, sourceName, targetName string) string {
	return fmt.Sprintf(batchPromptTemplate, sourceName, targetName, len(texts), strings.Join(texts, SegmentSeparator))
}

type translationsPayload struct {
	Translations []string `json:"translations"`
}

// ParseTranslations 先整体解码，失败或数量不符时再截取第一个 '{' 到最后一个 '}' 重新解码
func ParseTranslations(content string, want int) ([]string, error) {
	content = strings.TrimSpace(content)

	var p translationsPayload
	if err := json.Unmarshal([]byte(content), &p); err == nil && len(p.Translations) == want {
		return p.Translations, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no JSON object in response: %q", preview(content))
	}
	p = translationsPayload{}
	if err := json.Unmarshal([]byte(content[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("decode translations: %w", err)
	}
	if len(p.Translations) != want {
		return nil, fmt.Errorf("got %d translations, want %d", len(p.Translations), want)
	}
	return p.Translations, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 100 {
		return string(r[:100]) + "..."
	}
	return s
}
