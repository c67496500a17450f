package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString 兼容模型返回的字符串、数字或布尔值
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexString(strconv.FormatBool(v))
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Normalized 去除首尾空白并转小写，用于客观题判分
func (f FlexString) Normalized() string {
	return strings.ToLower(strings.TrimSpace(string(f)))
}

// Answers 考生提交的答案，key 形如 listening_s1_q3
type Answers map[string]FlexString

// HasAny 是否存在任一非空答案
func (a Answers) HasAny(keys ...string) bool {
	for _, k := range keys {
		if strings.TrimSpace(a[k].String()) != "" {
			return true
		}
	}
	return false
}

type Question struct {
	ID            FlexString      `json:"id"`
	Type          string          `json:"type,omitempty"`
	Question      string          `json:"question"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer FlexString      `json:"correct_answer"`
}

type ListeningSection struct {
	ID              FlexString `json:"id"`
	Title           string     `json:"title"`
	Instructions    string     `json:"instructions"`
	AudioTranscript string     `json:"audio_transcript"`
	Questions       []Question `json:"questions"`
}

type ListeningContent struct {
	Sections []ListeningSection `json:"sections"`
}

type SpeakingQuestion struct {
	ID       FlexString `json:"id"`
	Question string     `json:"question"`
}

type SpeakingCueCard struct {
	Topic    string `json:"topic"`
	TaskCard string `json:"task_card"`
}

type SpeakingContent struct {
	Part1 []SpeakingQuestion `json:"part1"`
	Part2 SpeakingCueCard    `json:"part2"`
	Part3 []SpeakingQuestion `json:"part3"`
}

type ReadingPassage struct {
	ID        FlexString `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Questions []Question `json:"questions"`
}

type ReadingContent struct {
	Passages []ReadingPassage `json:"passages"`
}

type WritingTask1 struct {
	Type             string     `json:"type"`
	Instructions     string     `json:"instructions"`
	ChartDescription string     `json:"chart_description"`
	WordCount        FlexString `json:"word_count"`
}

type WritingTask2 struct {
	Type      string     `json:"type"`
	Question  string     `json:"question"`
	WordCount FlexString `json:"word_count"`
}

type WritingContent struct {
	Task1 WritingTask1 `json:"task1"`
	Task2 WritingTask2 `json:"task2"`
}

// PhaseContent 一个阶段的题目内容，只会填充两个技能
type PhaseContent struct {
	Listening *ListeningContent `json:"listening,omitempty"`
	Speaking  *SpeakingContent  `json:"speaking,omitempty"`
	Reading   *ReadingContent   `json:"reading,omitempty"`
	Writing   *WritingContent   `json:"writing,omitempty"`
}

func ListeningAnswerKey(sectionID, questionID FlexString) string {
	return "listening_s" + sectionID.String() + "_q" + questionID.String()
}

func ReadingAnswerKey(passageID, questionID FlexString) string {
	return "reading_p" + passageID.String() + "_q" + questionID.String()
}

func SpeakingPart1Key(id FlexString) string {
	return "speaking_part1_" + id.String()
}

func SpeakingPart3Key(id FlexString) string {
	return "speaking_part3_" + id.String()
}

const (
	SpeakingPart2Key = "speaking_part2"
	WritingTask1Key  = "writing_task1"
	WritingTask2Key  = "writing_task2"
)
