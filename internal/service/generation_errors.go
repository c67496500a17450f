package service

import "fmt"

// GenerationError 提供方调用在重试后仍失败
type GenerationError struct {
	Slot    SlotID
	Class   FailureClass
	Retried bool
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Retried {
		return fmt.Sprintf("generation failed after retry on key %d (%s): %v", e.Slot, e.Class, e.Cause)
	}
	return fmt.Sprintf("generation failed on key %d (%s): %v", e.Slot, e.Class, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// ParseError 模型输出无法解析为 JSON，Snippet 为原文前 200 个字符
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON from response: %v. Response: %s", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
