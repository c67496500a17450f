package service

import (
	"encoding/json"
	"errors"
	"strings"
)

const parseSnippetLen = 200

var errNoJSON = errors.New("response is not valid JSON")

// ExtractJSON 从模型输出中取出 JSON：先找第一个括号配平的顶层对象或数组，
// 不合法时退回第一个对象，最后尝试整段文本
func ExtractJSON(text string) (json.RawMessage, error) {
	for _, openers := range []string{"{[", "{"} {
		if span, ok := firstValueSpan(text, openers); ok && json.Valid([]byte(span)) {
			return json.RawMessage(span), nil
		}
	}

	whole := strings.TrimSpace(text)
	if whole != "" && json.Valid([]byte(whole)) {
		return json.RawMessage(whole), nil
	}

	return nil, &ParseError{Snippet: truncateRunes(text, parseSnippetLen), Err: errNoJSON}
}

// firstValueSpan 返回从第一个 openers 中的字符开始、深度回到零为止的片段，字符串内的括号不计数
func firstValueSpan(text, openers string) (string, bool) {
	start := strings.IndexAny(text, openers)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
