package service

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureInvalidKey
	FailureRateLimited
)

func (c FailureClass) String() string {
	switch c {
	case FailureInvalidKey:
		return "invalid_key"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// ErrorClassifier 把提供方的错误归类，决定是否换密钥重试
type ErrorClassifier func(err error) FailureClass

var rateWord = regexp.MustCompile(`\brate`)

// DefaultErrorClassifier 优先使用结构化的状态码，再回退到错误文本匹配
func DefaultErrorClassifier(err error) FailureClass {
	if err == nil {
		return FailureOther
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if class := classifyStatus(apiErr.Code, apiErr.Status, detailReasons(apiErr.Details)); class != FailureOther {
			return class
		}
		return ClassifyMessage(apiErr.Message)
	}

	var httpErr *ProviderHTTPError
	if errors.As(err, &httpErr) {
		if class := classifyStatus(httpErr.StatusCode, "", nil); class != FailureOther {
			return class
		}
		return ClassifyMessage(httpErr.Body)
	}

	return ClassifyMessage(err.Error())
}

func classifyStatus(code int, status string, reasons []string) FailureClass {
	for _, r := range reasons {
		switch r {
		case "API_KEY_INVALID", "API_KEY_EXPIRED":
			return FailureInvalidKey
		case "RATE_LIMIT_EXCEEDED":
			return FailureRateLimited
		}
	}
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, status == "UNAUTHENTICATED", status == "PERMISSION_DENIED":
		return FailureInvalidKey
	case code == http.StatusTooManyRequests, status == "RESOURCE_EXHAUSTED":
		return FailureRateLimited
	}
	return FailureOther
}

func detailReasons(details []map[string]any) []string {
	var reasons []string
	for _, d := range details {
		if r, ok := d["reason"].(string); ok {
			reasons = append(reasons, r)
		}
	}
	return reasons
}

// ClassifyMessage 基于错误文本的匹配，失效判断优先于限流判断
func ClassifyMessage(msg string) FailureClass {
	m := strings.ToLower(msg)

	switch {
	case strings.Contains(m, "api_key_invalid"),
		strings.Contains(m, "api key expired"),
		strings.Contains(m, "api key invalid"),
		strings.Contains(m, "api key not valid"),
		strings.Contains(m, "expired"),
		strings.Contains(m, "invalid") && strings.Contains(m, "key"):
		return FailureInvalidKey
	case strings.Contains(m, "429"),
		strings.Contains(m, "quota"),
		rateWord.MatchString(m):
		return FailureRateLimited
	}
	return FailureOther
}
