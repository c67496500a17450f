package service

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"ielts_exam_backend/internal/util"
	"ielts_exam_backend/pkg/logger"
	"ielts_exam_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// SlotID 密钥槽位，1 为主密钥，2 为备用密钥，0 表示不指定
type SlotID int

const (
	SlotAuto    SlotID = 0
	SlotPrimary SlotID = 1
	SlotBackup  SlotID = 2
)

func (s SlotID) String() string {
	return strconv.Itoa(int(s))
}

func (s SlotID) other() SlotID {
	if s == SlotPrimary {
		return SlotBackup
	}
	return SlotPrimary
}

// Credential 一次调用使用的密钥，密钥本身只在包内可见
type Credential struct {
	Slot   SlotID
	apiKey string
}

type credentialSlot struct {
	apiKey     string
	lastUsedAt time.Time
	invalid    bool
}

// SlotState 槽位状态快照，不含密钥
type SlotState struct {
	Slot       SlotID    `json:"slot"`
	Invalid    bool      `json:"invalid"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// CredentialRotator 在两把密钥之间轮换：刚用过的密钥在冷却期内让位给另一把，
// 被判定失效的密钥不再参与选择
type CredentialRotator struct {
	mu       sync.Mutex
	slots    map[SlotID]*credentialSlot
	active   SlotID
	cooldown time.Duration
	now      func() time.Time
}

func NewCredentialRotator(primaryKey, backupKey string, cooldown time.Duration) (*CredentialRotator, error) {
	r := &CredentialRotator{
		cooldown: cooldown,
		now:      time.Now,
	}
	if err := r.configure(primaryKey, backupKey); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CredentialRotator) configure(primaryKey, backupKey string) error {
	if primaryKey == "" && backupKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or GEMINI_API_KEY_BACKUP", util.ErrConfiguration)
	}
	if primaryKey == "" {
		logger.Log.Warn("主密钥未配置，备用密钥作为唯一密钥使用")
		primaryKey, backupKey = backupKey, ""
	}

	slots := map[SlotID]*credentialSlot{
		SlotPrimary: {apiKey: primaryKey},
	}
	if backupKey != "" {
		slots[SlotBackup] = &credentialSlot{apiKey: backupKey}
	}

	r.slots = slots
	r.active = SlotPrimary
	for _, id := range []SlotID{SlotPrimary, SlotBackup} {
		monitoring.CredentialInvalidGauge.WithLabelValues(id.String()).Set(0)
	}
	return nil
}

// Reconfigure 用新密钥重建槽位，清空失效标记和使用时间
func (r *CredentialRotator) Reconfigure(primaryKey, backupKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.configure(primaryKey, backupKey); err != nil {
		return err
	}
	logger.Log.Info("AI 密钥已重新加载", zap.Int("slots", len(r.slots)))
	return nil
}

// Select 选择本次调用的槽位并记录使用时间。forced 指定的槽位可用时直接使用，
// 否则回退到自动选择
func (r *CredentialRotator) Select(forced SlotID) (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if forced != SlotAuto {
		if s, ok := r.slots[forced]; ok && !s.invalid {
			return r.use(forced), nil
		}
		logger.Log.Warn("指定的密钥不可用，改为自动选择", zap.Int("forced_slot", int(forced)))
	}

	slot, err := r.pick()
	if err != nil {
		return Credential{}, err
	}
	return r.use(slot), nil
}

func (r *CredentialRotator) pick() (SlotID, error) {
	if len(r.slots) == 1 {
		if r.slots[SlotPrimary].invalid {
			return 0, fmt.Errorf("%w: the only configured key is invalid or expired", util.ErrAllCredentialsInvalid)
		}
		return SlotPrimary, nil
	}

	active := r.slots[r.active]
	other := r.slots[r.active.other()]

	if active.invalid {
		if other.invalid {
			return 0, fmt.Errorf("%w: both keys are invalid or expired", util.ErrAllCredentialsInvalid)
		}
		return r.active.other(), nil
	}

	if !active.lastUsedAt.IsZero() && r.now().Sub(active.lastUsedAt) < r.cooldown {
		if !other.invalid {
			return r.active.other(), nil
		}
	}
	return r.active, nil
}

// use 调用方需持有锁
func (r *CredentialRotator) use(slot SlotID) Credential {
	if slot != r.active {
		logger.Log.Info("切换 AI 密钥", zap.Int("from_slot", int(r.active)), zap.Int("to_slot", int(slot)))
		monitoring.CredentialSwitchCounter.WithLabelValues(slot.String()).Inc()
	}
	s := r.slots[slot]
	s.lastUsedAt = r.now()
	r.active = slot
	return Credential{Slot: slot, apiKey: s.apiKey}
}

// SelectAlternate 原子地切换到 failed 之外的另一把可用密钥，用于失败后的单次重试
func (r *CredentialRotator) SelectAlternate(failed SlotID) (Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alt := failed.other()
	s, ok := r.slots[alt]
	if !ok || s.invalid {
		return Credential{}, false
	}
	return r.use(alt), true
}

func (r *CredentialRotator) MarkInvalid(slot SlotID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slot]
	if !ok || s.invalid {
		return
	}
	s.invalid = true
	monitoring.CredentialInvalidGauge.WithLabelValues(slot.String()).Set(1)
	logger.Log.Error("AI 密钥已失效，需要更新配置", zap.Int("slot", int(slot)))
}

// AllInvalid 所有已配置的密钥都被标记失效
func (r *CredentialRotator) AllInvalid() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if !s.invalid {
			return false
		}
	}
	return true
}

func (r *CredentialRotator) States() []SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]SlotState, 0, len(r.slots))
	for _, id := range []SlotID{SlotPrimary, SlotBackup} {
		if s, ok := r.slots[id]; ok {
			states = append(states, SlotState{Slot: id, Invalid: s.invalid, LastUsedAt: s.lastUsedAt})
		}
	}
	return states
}
