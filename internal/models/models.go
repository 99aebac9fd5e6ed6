// Package models defines data structures used throughout the trivia service.
package models

import (
	"slices"
	"strings"
	"time"
)

// Category is the sport a question belongs to
type Category string

// Known categories. The catalog in config may add more.
const (
	CategoryBasketball Category = "basketball"
	CategoryFootball   Category = "football"
	CategoryBaseball   Category = "baseball"
	CategorySoccer     Category = "soccer"
)

// NormalizeCategory lower-cases and trims a user supplied category
func NormalizeCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}

// QuestionSource records which path produced a served question
type QuestionSource string

// Question sources
const (
	SourceBank      QuestionSource = "bank"
	SourceGenerated QuestionSource = "generated"
	SourceFallback  QuestionSource = "fallback"
)

// FallbackQuestionID is the sentinel id carried by static fallback questions
const FallbackQuestionID = "fallback"

// Question is a single trivia question as stored in the bank
type Question struct {
	ID            string     `json:"id" yaml:"id"`
	Text          string     `json:"text" yaml:"text" validate:"required"`
	Options       []string   `json:"options" yaml:"options" validate:"len=4,unique,dive,required"`
	CorrectAnswer string     `json:"correct_answer" yaml:"correct_answer" validate:"required"`
	Explanation   string     `json:"explanation" yaml:"explanation"`
	Category      Category   `json:"category" yaml:"category" validate:"required"`
	Difficulty    int        `json:"difficulty" yaml:"difficulty" validate:"gt=0"`
	UsageCount    int        `json:"usage_count" yaml:"usage_count" validate:"gte=0"`
	LastUsed      *time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	CreatedAt     time.Time  `json:"created_at" yaml:"created_at"`
	// Source is set when the question is served and is not persisted
	Source QuestionSource `json:"source,omitempty" yaml:"-"`
}

// HasCorrectOption reports whether the correct answer is one of the options
func (q *Question) HasCorrectOption() bool {
	return slices.Contains(q.Options, q.CorrectAnswer)
}

// IsFallback reports whether q is a static fallback question
func (q *Question) IsFallback() bool {
	return q.ID == FallbackQuestionID
}

// IsEligible applies the selection predicate: under the usage cap and either never
// used or last used at least freshness ago.
func (q *Question) IsEligible(now time.Time, usageCap int, freshness time.Duration) bool {
	if q.UsageCount >= usageCap {
		return false
	}
	return q.LastUsed == nil || now.Sub(*q.LastUsed) >= freshness
}

// Clone returns a deep copy of q
func (q *Question) Clone() *Question {
	c := *q
	c.Options = slices.Clone(q.Options)
	if q.LastUsed != nil {
		t := *q.LastUsed
		c.LastUsed = &t
	}
	return &c
}

// BankStat summarizes the bank for one (category, difficulty) pair
type BankStat struct {
	Category   Category `json:"category"`
	Difficulty int      `json:"difficulty"`
	Total      int      `json:"total"`
	Eligible   int      `json:"eligible"`
	Unused     int      `json:"unused"`
}
