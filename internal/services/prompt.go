package services

import (
	"embed"
	"math/rand"
	"strings"
	"text/template"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	contextutils "sportstrivia/internal/utils"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

// Template names
const (
	QuestionSystemTemplate = "question_system.tmpl"
	QuestionPromptTemplate = "question_prompt.tmpl"
)

// PromptData holds the values rendered into the question prompt
type PromptData struct {
	Category    models.Category
	DisplayName string
	Points      int
	Label       string
	Guideline   string
	FocusHint   string
	Rules       []string
	Avoid       []string
	// Schema is inlined for providers that cannot enforce it through a grammar
	Schema string
}

// PromptTemplateManager renders the embedded prompt templates
type PromptTemplateManager struct {
	templates *template.Template
}

// NewPromptTemplateManager parses the embedded templates
func NewPromptTemplateManager() (result0 *PromptTemplateManager, err error) {
	templates, err := template.New("").ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse prompt templates: %w", err)
	}
	return &PromptTemplateManager{templates: templates}, nil
}

// Render executes a named template
func (tm *PromptTemplateManager) Render(templateName string, data PromptData) (result0 string, err error) {
	var buf strings.Builder
	if err := tm.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to render %s: %w", templateName, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// BuildPromptData assembles prompt values for one (sport, points) pair.
// Avoid lists texts the reply must not repeat.
func BuildPromptData(category models.Category, sport config.SportConfig, point config.PointValueConfig, focusHint string, avoid []string) PromptData {
	displayName := sport.DisplayName
	if displayName == "" {
		displayName = string(category)
	}
	return PromptData{
		Category:    category,
		DisplayName: displayName,
		Points:      point.Value,
		Label:       point.Label,
		Guideline:   point.Guideline,
		FocusHint:   focusHint,
		Rules:       point.Rules,
		Avoid:       avoid,
	}
}

// PickFocusHint chooses one topic hint at random, or "" when there are none
func PickFocusHint(intn func(int) int, hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	if intn == nil {
		intn = rand.Intn
	}
	return hints[intn(len(hints))]
}
