package services

import (
	"fmt"
	"math/rand"
	"strings"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
)

// FallbackProvider serves static catalog questions. It cannot fail.
type FallbackProvider struct {
	cfg  *config.Config
	intn func(int) int
}

// NewFallbackProvider creates a provider over the sports catalog
func NewFallbackProvider(cfg *config.Config) *FallbackProvider {
	return &FallbackProvider{cfg: cfg, intn: rand.Intn}
}

// Question picks one of the category's fallback questions uniformly at random and
// attaches difficulty. Categories without entries get a generic question naming the category.
func (f *FallbackProvider) Question(category models.Category, difficulty int) *models.Question {
	var entries []config.FallbackQuestionConfig
	if sport, ok := f.cfg.Sport(string(category)); ok {
		entries = sport.Fallback
	}
	if len(entries) == 0 {
		return genericFallback(category, difficulty)
	}

	e := entries[f.intn(len(entries))]
	return &models.Question{
		ID:            models.FallbackQuestionID,
		Text:          e.Text,
		Options:       append([]string(nil), e.Options...),
		CorrectAnswer: e.CorrectAnswer,
		Explanation:   e.Explanation,
		Category:      category,
		Difficulty:    difficulty,
		Source:        models.SourceFallback,
	}
}

func genericFallback(category models.Category, difficulty int) *models.Question {
	name := strings.TrimSpace(string(category))
	if name == "" {
		name = "sports"
	}
	options := []string{name, "Chess", "Curling", "Rowing"}
	for i, o := range options[1:] {
		if strings.EqualFold(o, name) {
			options[i+1] = "Fencing"
		}
	}
	return &models.Question{
		ID:            models.FallbackQuestionID,
		Text:          fmt.Sprintf("Which sport is this %s trivia round about?", name),
		Options:       options,
		CorrectAnswer: name,
		Explanation:   fmt.Sprintf("This round covers %s.", name),
		Category:      category,
		Difficulty:    difficulty,
		Source:        models.SourceFallback,
	}
}
