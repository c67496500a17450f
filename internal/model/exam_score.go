package model

type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	SectionID     string `json:"section_id,omitempty"`
	PassageID     string `json:"passage_id,omitempty"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

// ObjectiveScore 听力/阅读成绩
type ObjectiveScore struct {
	RawScore        int              `json:"raw_score"`
	TotalQuestions  int              `json:"total_questions"`
	Band            float64          `json:"band"`
	DetailedResults []QuestionResult `json:"detailed_results"`
}

type SpeakingScore struct {
	FluencyCoherence float64 `json:"fluency_coherence"`
	LexicalResource  float64 `json:"lexical_resource"`
	GrammaticalRange float64 `json:"grammatical_range"`
	Pronunciation    float64 `json:"pronunciation"`
	OverallBand      float64 `json:"overall_band"`
	Feedback         string  `json:"feedback"`
}

type WritingTask1Score struct {
	TaskAchievement   float64 `json:"task_achievement"`
	CoherenceCohesion float64 `json:"coherence_cohesion"`
	LexicalResource   float64 `json:"lexical_resource"`
	GrammaticalRange  float64 `json:"grammatical_range"`
	OverallBand       float64 `json:"overall_band"`
}

type WritingTask2Score struct {
	TaskResponse      float64 `json:"task_response"`
	CoherenceCohesion float64 `json:"coherence_cohesion"`
	LexicalResource   float64 `json:"lexical_resource"`
	GrammaticalRange  float64 `json:"grammatical_range"`
	OverallBand       float64 `json:"overall_band"`
}

type WritingScore struct {
	Task1       WritingTask1Score `json:"task1"`
	Task2       WritingTask2Score `json:"task2"`
	OverallBand float64           `json:"overall_band"`
	Feedback    string            `json:"feedback"`
}

// PhaseScores 一个阶段的两个技能成绩
type PhaseScores struct {
	Listening *ObjectiveScore `json:"listening,omitempty"`
	Speaking  *SpeakingScore  `json:"speaking,omitempty"`
	Reading   *ObjectiveScore `json:"reading,omitempty"`
	Writing   *WritingScore   `json:"writing,omitempty"`
}

// DetailedAnalysis 两部分独立生成，失败的一半为空对象
type DetailedAnalysis struct {
	IELTSAnalysis map[string]any `json:"ielts_analysis"`
	BeyondIELTS   map[string]any `json:"beyond_ielts"`
}

func EmptyAnalysis() *DetailedAnalysis {
	return &DetailedAnalysis{
		IELTSAnalysis: map[string]any{},
		BeyondIELTS:   map[string]any{},
	}
}

func (d *DetailedAnalysis) IsEmpty() bool {
	return d == nil || (len(d.IELTSAnalysis) == 0 && len(d.BeyondIELTS) == 0)
}

type FinalResults struct {
	Listening        float64           `json:"listening"`
	Reading          float64           `json:"reading"`
	Writing          float64           `json:"writing"`
	Speaking         float64           `json:"speaking"`
	Overall          float64           `json:"overall"`
	DetailedAnalysis *DetailedAnalysis `json:"detailed_analysis,omitempty"`
}
