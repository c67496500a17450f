package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ielts_exam_backend/internal/config"
	"ielts_exam_backend/internal/repository"
	"ielts_exam_backend/internal/service"
	"ielts_exam_backend/internal/util"
	"ielts_exam_backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// stubGenerator 每次调用都返回同一个错误
type stubGenerator struct {
	err error
}

func (s *stubGenerator) GenerateText(ctx context.Context, req service.TextRequest) (string, error) {
	return "", s.err
}

func (s *stubGenerator) GenerateStructured(ctx context.Context, prompt, systemPreamble string, forced service.SlotID) (json.RawMessage, error) {
	return nil, s.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, genErr error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.InitDB(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	gen := &stubGenerator{err: genErr}
	svc := service.NewExamSessionService(
		repository.NewExamSessionRepository(db),
		service.NewContentGenerator(gen),
		service.NewScoringService(gen),
		service.NewAnalysisService(gen, "English"),
		nil,
		service.NewStatusCache(nil, time.Minute),
		config.ExamConfig{},
	)
	c := NewExamSessionController(svc)

	r := gin.New()
	rg := r.Group("/api/sessions")
	rg.POST("", c.CreateSession)
	rg.GET("/:id", c.GetSession)
	rg.GET("/:id/status", c.GetStatus)
	rg.POST("/:id/select-phase", c.SelectPhase)
	rg.POST("/:id/generate", c.GeneratePhase1)
	rg.POST("/:id/start-phase1", c.StartPhase1)
	rg.POST("/:id/submit-phase1", c.SubmitPhase1)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"level": "intermediate"})
	require.Equal(t, http.StatusCreated, w.Code)

	var session struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.Equal(t, "initialized", session.Status)
	return session.ID
}

func TestExamSessionController_CreateAndSelect(t *testing.T) {
	r := newTestRouter(t, errors.New("unused"))
	id := createSession(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/select-phase", gin.H{"phase": "reading_writing"})
	require.Equal(t, http.StatusOK, w.Code)
	var session struct {
		Status        string `json:"status"`
		SelectedPhase string `json:"selectedPhase"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "phase1_selected", session.Status)
	assert.Equal(t, "reading_writing", session.SelectedPhase)

	w, env = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Phase1Available bool `json:"phase1Available"`
		Phase1Completed bool `json:"phase1Completed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Phase1Available)
	assert.False(t, status.Phase1Completed)
}

func TestExamSessionController_ErrorMapping(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		r := newTestRouter(t, errors.New("unused"))
		w, _ := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"level": "expert"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing body field", func(t *testing.T) {
		r := newTestRouter(t, errors.New("unused"))
		w, _ := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		r := newTestRouter(t, errors.New("unused"))
		w, _ := doJSON(t, r, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid phase", func(t *testing.T) {
		r := newTestRouter(t, errors.New("unused"))
		id := createSession(t, r)
		w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/select-phase", gin.H{"phase": "maths"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("out of order", func(t *testing.T) {
		r := newTestRouter(t, errors.New("unused"))
		id := createSession(t, r)
		w, env := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/start-phase1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, env.Message)
	})

	t.Run("submit without answers", func(t *testing.T) {
		r := newTestRouter(t, errors.New("unused"))
		id := createSession(t, r)
		w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/submit-phase1", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("generation failure", func(t *testing.T) {
		r := newTestRouter(t, &service.GenerationError{Slot: service.SlotPrimary, Class: service.FailureOther, Cause: errors.New("upstream 500")})
		id := createSession(t, r)
		doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/select-phase", gin.H{"phase": "listening_speaking"})

		w, env := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.True(t, strings.HasPrefix(env.Message, "Generation error: "), env.Message)

		// 失败后状态不变
		_, env = doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil)
		assert.Contains(t, string(env.Data), `"status":"phase1_selected"`)
	})

	t.Run("credentials exhausted", func(t *testing.T) {
		r := newTestRouter(t, util.ErrAllCredentialsInvalid)
		id := createSession(t, r)
		doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/select-phase", gin.H{"phase": "reading_writing"})

		w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
