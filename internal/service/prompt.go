package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/interviewqa/internal/domain"
)

// NoContextNotice replaces the context when retrieval found nothing.
const NoContextNotice = "（知识库中未找到相关资料，请基于通用的 Java 技术知识作答。）"

const webSnippetRunes = 200

const promptTemplate = `你是一位资深的Java技术面试官，请根据以下知识回答面试问题：
问题：%s

相关背景知识：
%s
%s
回答要求：
1. 分点列出核心要点
2. 提供实际代码示例（如果适用）
3. 解释技术原理
4. 最后给出面试回答建议

请严格使用以下 Markdown 结构作答：
## 核心知识点
## 技术实现
## 代码示例
## 面试建议
`

// FormatContexts renders retrieved chunks as "• [source] content" lines.
func FormatContexts(chunks []domain.ScoredChunk) string {
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines = append(lines, fmt.Sprintf("• [%s] %s", c.Chunk.Source, strings.TrimSpace(c.Chunk.Content)))
	}
	return strings.Join(lines, "\n")
}

// FormatWebResults renders web hits with their snippets cut to 200 runes.
func FormatWebResults(results []domain.WebResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("网络搜索结果：\n")
	for _, r := range results {
		b.WriteString(fmt.Sprintf("• [%s] %s...\n", r.URL, truncateRunes(r.Content, webSnippetRunes)))
	}
	return b.String()
}

// BuildPrompt assembles the interviewer prompt. An empty context is replaced
// by NoContextNotice.
func BuildPrompt(contextText, question string, web []domain.WebResult) string {
	if strings.TrimSpace(contextText) == "" {
		contextText = NoContextNotice
	}
	webSection := FormatWebResults(web)
	if webSection != "" {
		webSection = "\n" + webSection
	}
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(question), contextText, webSection)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
