package services

import (
	"testing"

	"sportstrivia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptTemplateManager_QuestionPrompt(t *testing.T) {
	cfg := newTestConfig(t)
	tm, err := NewPromptTemplateManager()
	require.NoError(t, err)

	sport, ok := cfg.Sport("football")
	require.True(t, ok)
	point, ok := cfg.PointValue("football", 6)
	require.True(t, ok)

	avoid := []string{"Who won Super Bowl LVII?", "Which team drafted Tom Brady?"}
	data := BuildPromptData(models.CategoryFootball, sport, point, "Famous rivalries and their history", avoid)

	prompt, err := tm.Render(QuestionPromptTemplate, data)
	require.NoError(t, err)

	assert.Contains(t, prompt, "Football trivia question worth 6 points (Touchdown)")
	assert.Contains(t, prompt, "historical plays, team records")
	assert.Contains(t, prompt, "Focus on this topic: Famous rivalries and their history")
	assert.Contains(t, prompt, "- Keep it challenging but not obscure")
	assert.Contains(t, prompt, "- Who won Super Bowl LVII?")
	assert.Contains(t, prompt, "- Which team drafted Tom Brady?")
	assert.Contains(t, prompt, `"correctAnswer"`)
	assert.NotContains(t, prompt, "JSON schema", "schema is only inlined on request")

	data.Schema = QuestionReplySchema
	withSchema, err := tm.Render(QuestionPromptTemplate, data)
	require.NoError(t, err)
	assert.Contains(t, withSchema, `"uniqueItems": true`)
}

func TestPromptTemplateManager_SinglePoint(t *testing.T) {
	cfg := newTestConfig(t)
	tm, err := NewPromptTemplateManager()
	require.NoError(t, err)

	sport, _ := cfg.Sport("soccer")
	point, _ := cfg.PointValue("soccer", 1)

	prompt, err := tm.Render(QuestionPromptTemplate, BuildPromptData(models.CategorySoccer, sport, point, "", nil))
	require.NoError(t, err)
	assert.Contains(t, prompt, "worth 1 point (Goal)")
	assert.NotContains(t, prompt, "Do not repeat")
	assert.NotContains(t, prompt, "Focus on this topic")
}

func TestPromptTemplateManager_System(t *testing.T) {
	tm, err := NewPromptTemplateManager()
	require.NoError(t, err)

	system, err := tm.Render(QuestionSystemTemplate, PromptData{})
	require.NoError(t, err)
	assert.Contains(t, system, "exactly four distinct answer options")
}

func TestPickFocusHint(t *testing.T) {
	hints := []string{"a", "b", "c"}
	assert.Equal(t, "c", PickFocusHint(func(n int) int { return n - 1 }, hints))
	assert.Equal(t, "", PickFocusHint(nil, nil))
	assert.Contains(t, hints, PickFocusHint(nil, hints))
}

func TestBuildPromptData_DisplayNameFallback(t *testing.T) {
	cfg := newTestConfig(t)
	point, _ := cfg.PointValue("baseball", 4)
	sport, _ := cfg.Sport("baseball")
	sport.DisplayName = ""

	data := BuildPromptData(models.CategoryBaseball, sport, point, "", nil)
	assert.Equal(t, "baseball", data.DisplayName)
	assert.Equal(t, 4, data.Points)
	assert.Equal(t, "Home Run", data.Label)
}
