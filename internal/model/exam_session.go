package model

import (
	"time"

	"gorm.io/datatypes"
)

type Level string

const (
	LevelBeginner          Level = "beginner"
	LevelElementary        Level = "elementary"
	LevelIntermediate      Level = "intermediate"
	LevelUpperIntermediate Level = "upper_intermediate"
	LevelAdvanced          Level = "advanced"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelElementary, LevelIntermediate, LevelUpperIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// BandRange 各等级对应的目标分数段，用于出题提示词
func (l Level) BandRange() string {
	switch l {
	case LevelBeginner:
		return "3.0-4.0"
	case LevelElementary:
		return "4.0-4.5"
	case LevelUpperIntermediate:
		return "6.0-6.5"
	case LevelAdvanced:
		return "7.0-8.0"
	default:
		return "5.0-5.5"
	}
}

type Phase string

const (
	PhaseListeningSpeaking Phase = "listening_speaking"
	PhaseReadingWriting    Phase = "reading_writing"
)

func (p Phase) Valid() bool {
	return p == PhaseListeningSpeaking || p == PhaseReadingWriting
}

// Complement 第二阶段始终是第一阶段的互补技能组
func (p Phase) Complement() Phase {
	if p == PhaseListeningSpeaking {
		return PhaseReadingWriting
	}
	return PhaseListeningSpeaking
}

type Skill string

const (
	SkillListening Skill = "listening"
	SkillReading   Skill = "reading"
	SkillWriting   Skill = "writing"
	SkillSpeaking  Skill = "speaking"
)

type SessionStatus string

const (
	StatusInitialized      SessionStatus = "initialized"
	StatusPhase1Selected   SessionStatus = "phase1_selected"
	StatusPhase1Generated  SessionStatus = "phase1_generated"
	StatusPhase1InProgress SessionStatus = "phase1_in_progress"
	StatusPhase1Completed  SessionStatus = "phase1_completed"
	StatusPhase2Generated  SessionStatus = "phase2_generated"
	StatusPhase2InProgress SessionStatus = "phase2_in_progress"
	StatusPhase2Completed  SessionStatus = "phase2_completed"
	StatusCompleted        SessionStatus = "completed"
)

var statusOrder = []SessionStatus{
	StatusInitialized,
	StatusPhase1Selected,
	StatusPhase1Generated,
	StatusPhase1InProgress,
	StatusPhase1Completed,
	StatusPhase2Generated,
	StatusPhase2InProgress,
	StatusPhase2Completed,
	StatusCompleted,
}

// Rank 状态在流程中的序号，未知状态返回 -1
func (s SessionStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanAdvanceTo 状态只能前进或保持不变，未知状态一律拒绝
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	from, to := s.Rank(), next.Rank()
	return from >= 0 && to >= from
}

// swagger:model ExamSession
type ExamSession struct {
	UUIDBase
	Level         Level         `gorm:"size:32;not null" json:"level"`
	SelectedPhase *Phase        `gorm:"size:32" json:"selectedPhase"`
	Status        SessionStatus `gorm:"size:32;not null;index" json:"status"`
	// Revision 每次状态迁移自增，用于条件更新
	Revision int `gorm:"not null;default:0" json:"-"`

	Phase1Content datatypes.JSON `json:"phase1Content"`
	Phase1Answers datatypes.JSON `json:"phase1Answers"`
	Phase1Scores  datatypes.JSON `json:"phase1Scores"`
	Phase2Content datatypes.JSON `json:"phase2Content"`
	Phase2Answers datatypes.JSON `json:"phase2Answers"`
	Phase2Scores  datatypes.JSON `json:"phase2Scores"`
	FinalResults  datatypes.JSON `json:"finalResults"`

	Phase1StartedAt   *time.Time `json:"phase1StartedAt,omitempty"`
	Phase1CompletedAt *time.Time `json:"phase1CompletedAt,omitempty"`
	Phase2StartedAt   *time.Time `json:"phase2StartedAt,omitempty"`
	Phase2CompletedAt *time.Time `json:"phase2CompletedAt,omitempty"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

// Phase2Type 第二阶段类型，未选择阶段时 ok 为 false
func (s *ExamSession) Phase2Type() (Phase, bool) {
	if s.SelectedPhase == nil {
		return "", false
	}
	return s.SelectedPhase.Complement(), true
}

// HasJSON 判断 JSON 列是否已写入（数据库 NULL 会被扫描成 "null"）
func HasJSON(j datatypes.JSON) bool {
	return len(j) > 0 && string(j) != "null"
}

// SessionStatusView 会话状态的只读投影
type SessionStatusView struct {
	ID              string        `json:"id"`
	Status          SessionStatus `json:"status"`
	Level           Level         `json:"level"`
	SelectedPhase   *Phase        `json:"selectedPhase"`
	Phase1Available bool          `json:"phase1Available"`
	Phase2Available bool          `json:"phase2Available"`
	Phase1Completed bool          `json:"phase1Completed"`
	Phase2Completed bool          `json:"phase2Completed"`
}

func (s *ExamSession) StatusView() SessionStatusView {
	return SessionStatusView{
		ID:              s.ID,
		Status:          s.Status,
		Level:           s.Level,
		SelectedPhase:   s.SelectedPhase,
		Phase1Available: HasJSON(s.Phase1Content),
		Phase2Available: HasJSON(s.Phase2Content),
		Phase1Completed: HasJSON(s.Phase1Scores),
		Phase2Completed: HasJSON(s.Phase2Scores),
	}
}
