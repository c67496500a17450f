package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// fakeGenerator 根据提示词内容返回预设 JSON，记录调用
type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []fakeCall
}

type fakeCall struct {
	Prompt string
	Forced SlotID
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{replies: map[string]string{}, errs: map[string]error{}}
}

// on 提示词包含 marker 时返回 reply
func (f *fakeGenerator) on(marker, reply string) *fakeGenerator {
	f.replies[marker] = reply
	return f
}

func (f *fakeGenerator) fail(marker string, err error) *fakeGenerator {
	f.errs[marker] = err
	return f
}

func (f *fakeGenerator) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	raw, err := f.GenerateStructured(ctx, req.Prompt, req.SystemPreamble, req.ForcedSlot)
	return string(raw), err
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, prompt, systemPreamble string, forced SlotID) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fakeCall{Prompt: prompt, Forced: forced})
	for marker, err := range f.errs {
		if strings.Contains(prompt, marker) {
			return nil, err
		}
	}
	for marker, reply := range f.replies {
		if strings.Contains(prompt, marker) {
			return ExtractJSON(reply)
		}
	}
	return nil, errors.New("no scripted reply")
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGenerator) callsMatching(marker string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if strings.Contains(c.Prompt, marker) {
			out = append(out, c)
		}
	}
	return out
}

const readingWritingFixture = `{
  "reading": {
    "passages": [
      {"id": 1, "title": "Urban Cycling", "content": "...", "questions": [
        {"id": 1, "type": "multiple_choice", "question": "q1", "options": ["A. x", "B. y"], "correct_answer": "A"},
        {"id": 2, "type": "tfng", "question": "q2", "correct_answer": "True"},
        {"id": 3, "type": "tfng", "question": "q3", "correct_answer": "Not Given"},
        {"id": 4, "type": "multiple_choice", "question": "q4", "correct_answer": "C"},
        {"id": 5, "type": "fill_blank", "question": "q5", "correct_answer": "bicycle lanes"}
      ]},
      {"id": 2, "title": "Remote Work", "content": "...", "questions": [
        {"id": 6, "type": "multiple_choice", "question": "q6", "correct_answer": "B"},
        {"id": 7, "type": "matching", "question": "q7", "correct_answer": "iii"},
        {"id": 8, "type": "tfng", "question": "q8", "correct_answer": "False"},
        {"id": 9, "type": "multiple_choice", "question": "q9", "correct_answer": "D"},
        {"id": 10, "type": "fill_blank", "question": "q10", "correct_answer": 2020}
      ]}
    ]
  },
  "writing": {
    "task1": {"type": "chart_description", "instructions": "Summarise the chart.", "chart_description": "Bar chart", "word_count": 50},
    "task2": {"type": "essay", "question": "Discuss remote work.", "word_count": 100}
  }
}`

const listeningSpeakingFixture = `{
  "listening": {
    "sections": [
      {"id": 1, "title": "Section 1", "instructions": "...", "audio_transcript": "...", "questions": [
        {"id": 1, "type": "multiple_choice", "question": "q1", "correct_answer": "A"},
        {"id": 2, "type": "fill_blank", "question": "q2", "correct_answer": "Tuesday"}
      ]}
    ]
  },
  "speaking": {
    "part1": [{"id": 1, "question": "Where do you live?"}, {"id": 2, "question": "Do you work or study?"}],
    "part2": {"topic": "A trip", "task_card": "Describe a memorable trip."},
    "part3": [{"id": 1, "question": "Why do people travel?"}]
  }
}`

// readingAllCorrect 阅读夹具的全对答案
func readingAllCorrect() map[string]any {
	return map[string]any{
		"reading_p1_q1": "A", "reading_p1_q2": "true", "reading_p1_q3": " not given ",
		"reading_p1_q4": "C", "reading_p1_q5": "Bicycle Lanes",
		"reading_p2_q6": "b", "reading_p2_q7": "III", "reading_p2_q8": "False",
		"reading_p2_q9": "D", "reading_p2_q10": 2020,
	}
}

const speakingScoreReply = `{"fluency_coherence": 6.5, "lexical_resource": 6.0, "grammatical_range": "6.0", "pronunciation": 7.0, "overall_band": 6.5, "feedback": "Good range"}`

const writingScoreReply = `{"task1": {"task_achievement": 6.0, "coherence_cohesion": 6.0, "lexical_resource": 5.5, "grammatical_range": 5.5, "overall_band": 5.5}, "task2": {"task_response": 6.0, "coherence_cohesion": 6.0, "lexical_resource": 6.0, "grammatical_range": 5.5, "overall_band": 6.0}, "overall_band": 5.5, "feedback": "Clear structure"}`
