package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.NewDefaultConfig()
	require.NoError(t, err)
	cfg.Storage.Driver = "memory"
	cfg.Preload.Disabled = true

	out := &bytes.Buffer{}
	env := NewEnv(cfg, observability.NewNopLogger(), NewPrinterWithFormat(out, false))
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env, out
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func seedQuestion(t *testing.T, env *Env) string {
	t.Helper()
	container, err := env.Container(context.Background())
	require.NoError(t, err)
	bank, err := container.GetQuestionBank()
	require.NoError(t, err)

	id, err := bank.Insert(context.Background(), &models.Question{
		Text:          "Which team won Super Bowl LVII?",
		Options:       []string{"Chiefs", "Eagles", "Bengals", "49ers"},
		CorrectAnswer: "Chiefs",
		Category:      models.CategoryFootball,
		Difficulty:    3,
	})
	require.NoError(t, err)
	return id
}

func TestSimilarityCommand(t *testing.T) {
	t.Run("plain score", func(t *testing.T) {
		env, out := newTestEnv(t)
		require.NoError(t, execute(t, SimilarityCommand(env), "kitten", "sitting"))

		var res similarityResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, 3, res.Distance)
		assert.InDelta(t, 4.0/7.0, res.Similarity, 1e-9)
		assert.Nil(t, res.Duplicate)
	})

	t.Run("with sport threshold", func(t *testing.T) {
		env, out := newTestEnv(t)
		require.NoError(t, execute(t, SimilarityCommand(env), "abc", "abd", "--sport", "football"))

		var res similarityResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, env.Config.DedupThreshold("football"), res.Threshold)
		require.NotNil(t, res.Duplicate)
		assert.Equal(t, res.Similarity > res.Threshold, *res.Duplicate)
	})

	t.Run("unknown sport", func(t *testing.T) {
		env, _ := newTestEnv(t)
		err := execute(t, SimilarityCommand(env), "a", "b", "--sport", "cricket")
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
	})

	t.Run("needs two args", func(t *testing.T) {
		env, _ := newTestEnv(t)
		assert.Error(t, execute(t, SimilarityCommand(env), "only one"))
	})
}

func TestBankStatsCommand(t *testing.T) {
	env, out := newTestEnv(t)
	seedQuestion(t, env)

	require.NoError(t, execute(t, BankCommands(env), "stats"))

	var stats []models.BankStat
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, models.CategoryFootball, stats[0].Category)
	assert.Equal(t, 3, stats[0].Difficulty)
	assert.Equal(t, 1, stats[0].Total)
	assert.Equal(t, 1, stats[0].Eligible)
	assert.Equal(t, 1, stats[0].Unused)
}

func TestBankGenerateCommand(t *testing.T) {
	t.Run("invalid flags", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"unknown sport", []string{"generate", "--sport", "cricket"}},
			{"zero count", []string{"generate", "--sport", "football", "--count", "0"}},
			{"points not in catalog", []string{"generate", "--sport", "football", "--points", "4"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env, _ := newTestEnv(t)
				err := execute(t, BankCommands(env), tt.args...)
				require.Error(t, err)
				assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
			})
		}
	})

	t.Run("no provider configured", func(t *testing.T) {
		env, out := newTestEnv(t)
		err := execute(t, BankCommands(env), "generate", "--sport", "football", "--count", "2", "--pacing", "0s")
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationExhausted))

		var rows []generatedRow
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, 3, rows[0].Points)
		assert.Equal(t, 6, rows[1].Points)
		for _, r := range rows {
			assert.NotEmpty(t, r.Error)
			assert.Empty(t, r.ID)
		}
	})
}

func TestQuestionNextCommand(t *testing.T) {
	t.Run("serves from the bank", func(t *testing.T) {
		env, out := newTestEnv(t)
		id := seedQuestion(t, env)

		require.NoError(t, execute(t, QuestionCommands(env), "next", "--sport", "Football", "--points", "3"))

		var view questionView
		require.NoError(t, json.Unmarshal(out.Bytes(), &view))
		assert.Equal(t, id, view.ID)
		assert.Equal(t, string(models.SourceBank), view.Source)
		assert.Equal(t, "Chiefs", view.CorrectAnswer)
	})

	t.Run("falls back when nothing can be generated", func(t *testing.T) {
		env, out := newTestEnv(t)
		require.NoError(t, execute(t, QuestionCommands(env), "next", "--sport", "soccer", "--points", "1"))

		var view questionView
		require.NoError(t, json.Unmarshal(out.Bytes(), &view))
		assert.Equal(t, models.FallbackQuestionID, view.ID)
		assert.Equal(t, string(models.SourceFallback), view.Source)
		assert.Equal(t, 1, view.Points)
		assert.Len(t, view.Options, 4)
	})

	t.Run("requires points", func(t *testing.T) {
		env, _ := newTestEnv(t)
		assert.Error(t, execute(t, QuestionCommands(env), "next", "--sport", "soccer"))
	})
}

func TestConfigShowCommand(t *testing.T) {
	env, _ := newTestEnv(t)
	env.Config.Database.URL = "postgres://trivia:db-password@db:5432/trivia"
	env.Config.Providers = []config.ProviderConfig{
		{Code: "openai", Type: "openai", APIKey: "sk-provider-key"},
	}

	cmd := ConfigCommands(env)
	out := &bytes.Buffer{}
	cmd.SetArgs([]string{"show"})
	cmd.SetOut(out)
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	text := out.String()
	assert.Contains(t, text, "storage:")
	assert.Contains(t, text, "db:5432/trivia")
	assert.NotContains(t, text, "db-password")
	assert.NotContains(t, text, "sk-provider-key")

	// the loaded config is untouched
	assert.Equal(t, "sk-provider-key", env.Config.Providers[0].APIKey)
}

func TestPrinter(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out := &bytes.Buffer{}
		p := NewPrinterWithFormat(out, true)
		require.NoError(t, p.Print(nil, []string{"SPORT", "POINTS"}, [][]string{{"football", "6"}}))
		p.Line("done")

		assert.Equal(t, "SPORT     POINTS\n-----     ------\nfootball  6\ndone\n", out.String())
	})

	t.Run("json", func(t *testing.T) {
		out := &bytes.Buffer{}
		p := NewPrinterWithFormat(out, false)
		require.NoError(t, p.Print(map[string]int{"total": 2}, []string{"TOTAL"}, [][]string{{"2"}}))
		p.Line("ignored")

		assert.JSONEq(t, `{"total": 2}`, out.String())
	})

	t.Run("non terminal writer", func(t *testing.T) {
		assert.False(t, NewPrinter(&bytes.Buffer{}).Table())
	})
}
