package services

import (
	"encoding/json"
	"strings"

	"sportstrivia/internal/models"
	contextutils "sportstrivia/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// QuestionReplySchema is the JSON shape a generator reply must have
const QuestionReplySchema = `{
  "type": "object",
  "properties": {
    "text": {"type": "string", "minLength": 1},
    "options": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "minItems": 4,
      "maxItems": 4,
      "uniqueItems": true
    },
    "correctAnswer": {"type": "string", "minLength": 1},
    "explanation": {"type": "string"}
  },
  "required": ["text", "options", "correctAnswer", "explanation"]
}`

var questionReplySchemaLoader = gojsonschema.NewStringLoader(QuestionReplySchema)

// QuestionReply is a parsed generator reply
type QuestionReply struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// cleanJSONResponse strips markdown code fences and any prose around the outermost object
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		response = response[start : end+1]
	}
	return response
}

// ParseQuestionReply validates a raw reply against QuestionReplySchema and checks that
// the correct answer is one of the options. Failures are contextutils.ErrGenerationInvalidResponse.
func ParseQuestionReply(response string) (*QuestionReply, error) {
	cleaned := cleanJSONResponse(response)

	result, err := gojsonschema.Validate(questionReplySchemaLoader, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationInvalidResponse, "reply is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var errorMessages []string
		for _, e := range result.Errors() {
			errorMessages = append(errorMessages, e.String())
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationInvalidResponse, "reply failed schema validation: %s", strings.Join(errorMessages, "; "))
	}

	var reply QuestionReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationInvalidResponse, "failed to decode reply: %w", err)
	}

	reply.Text = strings.TrimSpace(reply.Text)
	for i := range reply.Options {
		reply.Options[i] = strings.TrimSpace(reply.Options[i])
	}
	reply.CorrectAnswer = strings.TrimSpace(reply.CorrectAnswer)

	q := reply.toQuestion("", 0)
	if !q.HasCorrectOption() {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationInvalidResponse, "correct answer %q is not one of the options", reply.CorrectAnswer)
	}
	if err := contextutils.ValidateStruct(struct {
		Options []string `validate:"len=4,unique,dive,required"`
	}{reply.Options}); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationInvalidResponse, "invalid options: %s", err.Error())
	}
	return &reply, nil
}

func (r *QuestionReply) toQuestion(category models.Category, difficulty int) *models.Question {
	return &models.Question{
		Text:          r.Text,
		Options:       append([]string(nil), r.Options...),
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
		Category:      category,
		Difficulty:    difficulty,
	}
}
