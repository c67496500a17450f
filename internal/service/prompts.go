package service

import (
	"fmt"

	"ielts_exam_backend/internal/model"
)

const contentSystemPreamble = "You are an expert IELTS examiner. Generate test content in JSON format only."

func listeningSpeakingPrompt(level model.Level) string {
	return fmt.Sprintf(`Generate a 30-minute IELTS Listening & Speaking test for %s level (estimated band %s).

LISTENING SECTION (20 minutes):
- Section 1: Daily conversation (5 questions: multiple choice, fill-in-blank)
- Section 2: Social monologue (5 questions: multiple choice, matching)
- Section 3: Academic conversation (5 questions: multiple choice, short answer)
- Section 4: Academic lecture (5 questions: fill-in-blank, matching)

Every listening section MUST include a complete, natural audio transcript that contains all information needed to answer its questions.

SPEAKING SECTION (10 minutes):
- Part 1: 3-4 introduction questions (hometown, work/study, hobbies, family)
- Part 2: 1 topic card for a 2-minute description
- Part 3: 3-4 discussion questions related to the Part 2 topic

Return JSON format:
{
  "listening": {
    "sections": [
      {
        "id": 1,
        "title": "Section 1: Daily Conversation",
        "instructions": "...",
        "audio_transcript": "Complete transcript, 200-300 words",
        "questions": [
          {"id": 1, "type": "multiple_choice", "question": "...", "options": ["A. ...", "B. ...", "C. ..."], "correct_answer": "A"},
          {"id": 2, "type": "fill_blank", "question": "...", "correct_answer": "..."}
        ]
      }
    ]
  },
  "speaking": {
    "part1": [{"id": 1, "question": "..."}],
    "part2": {"topic": "...", "task_card": "..."},
    "part3": [{"id": 1, "question": "..."}]
  }
}`, level, level.BandRange())
}

func readingWritingPrompt(level model.Level) string {
	return fmt.Sprintf(`Generate a 30-minute IELTS Reading & Writing test for %s level (estimated band %s).

READING SECTION (15 minutes):
- Passage 1: Data/chart-based article (300-400 words, 5 questions: multiple choice, True/False/Not Given)
- Passage 2: Social topic article (300-400 words, 5 questions: multiple choice, matching headings)

WRITING SECTION (15 minutes):
- Task 1: Describe a chart/graph (50-80 words). Charts cannot be displayed, so provide a detailed TEXT DESCRIPTION with chart type, title, every data point, categories and key trends.
- Task 2: Social essay topic (100-120 words)

Return JSON format:
{
  "reading": {
    "passages": [
      {
        "id": 1,
        "title": "...",
        "content": "...",
        "questions": [
          {"id": 1, "type": "multiple_choice", "question": "...", "options": ["A. ...", "B. ...", "C. ..."], "correct_answer": "A"}
        ]
      }
    ]
  },
  "writing": {
    "task1": {"type": "chart_description", "instructions": "...", "chart_description": "...", "word_count": 50},
    "task2": {"type": "essay", "question": "...", "word_count": 100}
  }
}`, level, level.BandRange())
}

const speakingSystemPreamble = "You are an IELTS examiner. Evaluate speaking using 4 criteria: Fluency and Coherence, Lexical Resource, Grammatical Range and Accuracy, Pronunciation. Return JSON only."

func speakingScorePrompt(part1, cueCard, part2Answer, part3 string) string {
	return fmt.Sprintf(`Evaluate IELTS Speaking:

P1: %s

P2: %s
A2: %s

P3: %s

Return JSON only:
{"fluency_coherence":7.0,"lexical_resource":7.0,"grammatical_range":7.0,"pronunciation":7.0,"overall_band":7.0,"feedback":"Brief feedback"}`, part1, cueCard, part2Answer, part3)
}

const writingSystemPreamble = "You are an IELTS examiner. Evaluate writing using the official criteria: Task Achievement/Response, Coherence and Cohesion, Lexical Resource, Grammatical Range and Accuracy. Return JSON only."

func writingScorePrompt(task1Instructions, task1Answer, task2Question, task2Answer string) string {
	return fmt.Sprintf(`Evaluate IELTS Writing:

T1: %s
A1: %s

T2: %s
A2: %s

Return JSON only:
{"task1":{"task_achievement":7.0,"coherence_cohesion":7.0,"lexical_resource":7.0,"grammatical_range":7.0,"overall_band":7.0},"task2":{"task_response":7.0,"coherence_cohesion":7.0,"lexical_resource":7.0,"grammatical_range":7.0,"overall_band":7.0},"overall_band":7.0,"feedback":"Brief feedback"}`, task1Instructions, task1Answer, task2Question, task2Answer)
}

func analysisSystemPreamble(language string) string {
	return fmt.Sprintf("You are an IELTS examiner analysing an English learner. Write every text value in %s. Return JSON only.", language)
}

// analysisDigest 两个分析请求共用的成绩摘要
type analysisDigest struct {
	Scores           string
	Listening        string
	Reading          string
	Writing          string
	Speaking         string
	WritingSample    string
	SpeakingSample   string
	ResponseLanguage string
}

func ieltsAnalysisPrompt(d analysisDigest) string {
	return fmt.Sprintf(`IELTS analysis (answer in %s):

Scores: %s
Data: L:%s R:%s W:%s S:%s
Samples: W:%s S:%s

Analyse:
- R: strengths/weaknesses, question types (MC, T/F/NG, matching, fill-blank)
- L: strengths/weaknesses, question types (MC, fill-blank, matching, short answer)
- W: 4 criteria (TA, CC, LR, GR) strengths/weaknesses per criterion, T1 vs T2
- S: 4 criteria (FC, LR, GR, P) strengths/weaknesses per criterion

JSON: {"ielts_analysis":{"reading":{"strengths":[],"weaknesses":[],"question_type_analysis":{}},"listening":{"strengths":[],"weaknesses":[],"question_type_analysis":{}},"writing":{"task_achievement":{"score":0,"strengths":[],"weaknesses":[]},"coherence_cohesion":{"score":0,"strengths":[],"weaknesses":[]},"lexical_resource":{"score":0,"strengths":[],"weaknesses":[]},"grammatical_range":{"score":0,"strengths":[],"weaknesses":[]},"overall_assessment":""},"speaking":{"fluency_coherence":{"score":0,"strengths":[],"weaknesses":[]},"lexical_resource":{"score":0,"strengths":[],"weaknesses":[]},"grammatical_range":{"score":0,"strengths":[],"weaknesses":[]},"pronunciation":{"score":0,"strengths":[],"weaknesses":[]},"overall_assessment":""}}}`,
		d.ResponseLanguage, d.Scores, d.Listening, d.Reading, d.Writing, d.Speaking, d.WritingSample, d.SpeakingSample)
}

func beyondIELTSPrompt(d analysisDigest) string {
	return fmt.Sprintf(`Beyond IELTS analysis (answer in %s):

Scores: %s
Data: W:%s S:%s
Samples: W:%s S:%s

Analyse:
- Reflex: low/medium/high
- Reception: ability to take in and process information
- Mother tongue influence: translation habits, vocabulary (natural vs translated), impact on L/R/S/W
- Grammar: meaning errors, grammar errors, structure errors, unnatural phrasing
- Pronunciation: clarity, coherence, native comprehension, rhythm/stress, word accuracy, diphthongs/endings
- Vocabulary: level (basic/advanced), natural vs translated, assessment

JSON: {"beyond_ielts":{"reflex_level":"","reception_ability":"","mother_tongue_influence":{"translation":"","vocabulary_usage":"","listening":"","reading":"","speaking":"","writing":""},"grammar":{"meaning_errors":"","grammar_errors":"","structure_errors":"","unnatural":""},"pronunciation":{"hard_to_understand":"","lack_coherence":"","native_comprehension":"","rhythm_stress":"","word_pronunciation":"","diphthongs_endings":""},"vocabulary":{"level":"","natural_vs_translated":"","assessment":""}}}`,
		d.ResponseLanguage, d.Scores, d.Writing, d.Speaking, d.WritingSample, d.SpeakingSample)
}
