package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"
	contextutils "sportstrivia/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSelectionService is a mock implementation of SelectionServiceInterface
type MockSelectionService struct {
	mock.Mock
}

func (m *MockSelectionService) GetQuestion(ctx context.Context, category models.Category, difficulty int) *models.Question {
	args := m.Called(ctx, category, difficulty)
	return args.Get(0).(*models.Question)
}

// MockPreloader is a mock implementation of PreloaderInterface
type MockPreloader struct {
	mock.Mock
}

func (m *MockPreloader) Preload(ctx context.Context, category models.Category) services.PreloadResult {
	return m.Called(ctx, category).Get(0).(services.PreloadResult)
}

func (m *MockPreloader) PreloadDifficulty(ctx context.Context, category models.Category, points, count int) services.PreloadResult {
	return m.Called(ctx, category, points, count).Get(0).(services.PreloadResult)
}

func (m *MockPreloader) PreloadAsync(category models.Category) bool {
	return m.Called(category).Bool(0)
}

func (m *MockPreloader) Running(category models.Category) bool {
	return m.Called(category).Bool(0)
}

func (m *MockPreloader) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewDefaultConfig()
	require.NoError(t, err)
	return cfg
}

func newTestRouter(t *testing.T) (*gin.Engine, *MockSelectionService, *MockPreloader, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := newTestConfig(t)
	selection := new(MockSelectionService)
	preloader := new(MockPreloader)
	return NewRouter(cfg, selection, preloader, observability.NewNopLogger()), selection, preloader, cfg
}

func doRequest(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQuestionHandler_GetNextQuestion(t *testing.T) {
	router, selection, _, _ := newTestRouter(t)

	q := &models.Question{
		ID:            "6f1c2c1e-3f0e-4c65-9a0d-7b8f0d6f9a11",
		Text:          "Who won the 1998 NBA Finals MVP?",
		Options:       []string{"Michael Jordan", "Karl Malone", "Scottie Pippen", "John Stockton"},
		CorrectAnswer: "Michael Jordan",
		Explanation:   "Jordan won his sixth Finals MVP.",
		Category:      models.CategoryBasketball,
		Difficulty:    3,
		Source:        models.SourceBank,
	}
	selection.On("GetQuestion", mock.Anything, models.CategoryBasketball, 3).Return(q)

	w := doRequest(router, http.MethodGet, "/v1/questions/next?sport=Basketball&points=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp QuestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, q.ID, resp.ID)
	assert.Equal(t, q.Options, resp.Options)
	assert.Equal(t, "basketball", resp.Sport)
	assert.Equal(t, 3, resp.Points)
	assert.Equal(t, "bank", resp.Source)
	selection.AssertExpectations(t)
}

func TestQuestionHandler_GetNextQuestionServesFallback(t *testing.T) {
	router, selection, _, _ := newTestRouter(t)

	fallback := &models.Question{
		ID:            models.FallbackQuestionID,
		Text:          "Which sport is curling?",
		Options:       []string{"curling", "Chess", "Curling", "Rowing"},
		CorrectAnswer: "curling",
		Category:      "curling",
		Difficulty:    7,
		Source:        models.SourceFallback,
	}
	selection.On("GetQuestion", mock.Anything, models.Category("curling"), 7).Return(fallback)

	w := doRequest(router, http.MethodGet, "/v1/questions/next?sport=curling&points=7", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp QuestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.FallbackQuestionID, resp.ID)
	assert.Equal(t, "fallback", resp.Source)
}

func TestQuestionHandler_GetNextQuestionBadParams(t *testing.T) {
	router, selection, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		path string
	}{
		{"missing sport", "/v1/questions/next?points=3"},
		{"missing points", "/v1/questions/next?sport=football"},
		{"points not a number", "/v1/questions/next?sport=football&points=three"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(contextutils.ErrorCodeInvalidInput), body["code"])
		})
	}
	selection.AssertNotCalled(t, "GetQuestion", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuestionHandler_PreloadGame(t *testing.T) {
	t.Run("started", func(t *testing.T) {
		router, _, preloader, _ := newTestRouter(t)
		preloader.On("PreloadAsync", models.CategoryFootball).Return(true).Once()

		w := doRequest(router, http.MethodPost, "/v1/games/preload", []byte(`{"sport": "Football"}`))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"sport": "football", "status": "started"}`, w.Body.String())
		preloader.AssertExpectations(t)
	})

	t.Run("already running", func(t *testing.T) {
		router, _, preloader, _ := newTestRouter(t)
		preloader.On("PreloadAsync", models.CategorySoccer).Return(false).Once()

		w := doRequest(router, http.MethodPost, "/v1/games/preload", []byte(`{"sport": "soccer"}`))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"sport": "soccer", "status": "already_running"}`, w.Body.String())
	})

	t.Run("disabled", func(t *testing.T) {
		router, _, preloader, cfg := newTestRouter(t)
		cfg.Preload.Disabled = true

		w := doRequest(router, http.MethodPost, "/v1/games/preload", []byte(`{"sport": "baseball"}`))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"sport": "baseball", "status": "disabled"}`, w.Body.String())
		preloader.AssertNotCalled(t, "PreloadAsync", mock.Anything)
	})

	t.Run("unknown sport", func(t *testing.T) {
		router, _, preloader, _ := newTestRouter(t)

		w := doRequest(router, http.MethodPost, "/v1/games/preload", []byte(`{"sport": "cricket"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		preloader.AssertNotCalled(t, "PreloadAsync", mock.Anything)
	})

	t.Run("missing sport", func(t *testing.T) {
		router, _, _, _ := newTestRouter(t)

		w := doRequest(router, http.MethodPost, "/v1/games/preload", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSportsHandler_ListSports(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/v1/sports", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sports []SportSummary `json:"sports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sports, 4)

	bySport := map[string]SportSummary{}
	for _, s := range resp.Sports {
		bySport[s.Sport] = s
	}
	assert.Equal(t, 50, bySport["football"].WinningScore)
	assert.Equal(t, 10, bySport["soccer"].WinningScore)
	assert.Equal(t, 21, bySport["basketball"].WinningScore)

	var footballPoints []int
	for _, p := range bySport["football"].Points {
		footballPoints = append(footballPoints, p.Value)
	}
	assert.Equal(t, []int{3, 6}, footballPoints)
}

func TestRouter_HealthAndVersion(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok", "service": "trivia-server"}`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/v1/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "trivia-server", info["service"])
	assert.NotEmpty(t, info["version"])

	// security headers from gin-contrib/secure
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
