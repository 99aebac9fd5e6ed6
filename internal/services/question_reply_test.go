package services

import (
	"testing"

	contextutils "sportstrivia/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionReply(t *testing.T) {
	t.Run("valid reply", func(t *testing.T) {
		reply, err := ParseQuestionReply(validReply("Who won six NBA titles with the Bulls?"))
		require.NoError(t, err)
		assert.Equal(t, "Who won six NBA titles with the Bulls?", reply.Text)
		assert.Len(t, reply.Options, 4)
		assert.Equal(t, "Michael Jordan", reply.CorrectAnswer)
	})

	t.Run("code fences and surrounding prose", func(t *testing.T) {
		raw := "Here you go:\n```json\n" + validReply("Fenced?") + "\n```"
		reply, err := ParseQuestionReply("```json\n" + validReply("Fenced?") + "\n```")
		require.NoError(t, err)
		assert.Equal(t, "Fenced?", reply.Text)

		reply, err = ParseQuestionReply(raw)
		require.NoError(t, err)
		assert.Equal(t, "Fenced?", reply.Text)
	})

	t.Run("trims whitespace before matching the answer", func(t *testing.T) {
		raw := `{"text": " Q? ", "options": [" A", "B", "C", "D"], "correctAnswer": "A ", "explanation": ""}`
		reply, err := ParseQuestionReply(raw)
		require.NoError(t, err)
		assert.Equal(t, "Q?", reply.Text)
		assert.Equal(t, "A", reply.CorrectAnswer)
		assert.Equal(t, "A", reply.Options[0])
	})

	invalid := []struct {
		name string
		raw  string
	}{
		{"not json", "I cannot answer that."},
		{"answer not in options", `{"text": "Q?", "options": ["A", "B", "C", "D"], "correctAnswer": "E", "explanation": "x"}`},
		{"three options", `{"text": "Q?", "options": ["A", "B", "C"], "correctAnswer": "A", "explanation": "x"}`},
		{"duplicate options", `{"text": "Q?", "options": ["A", "A", "C", "D"], "correctAnswer": "A", "explanation": "x"}`},
		{"duplicate after trimming", `{"text": "Q?", "options": ["A", "A ", "C", "D"], "correctAnswer": "A", "explanation": "x"}`},
		{"missing explanation", `{"text": "Q?", "options": ["A", "B", "C", "D"], "correctAnswer": "A"}`},
		{"empty text", `{"text": "", "options": ["A", "B", "C", "D"], "correctAnswer": "A", "explanation": "x"}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestionReply(tt.raw)
			require.Error(t, err)
			assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationInvalidResponse), "got %v", err)
		})
	}
}
