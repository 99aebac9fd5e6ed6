package config

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"sync"

	contextutils "sportstrivia/internal/utils"

	"gopkg.in/yaml.v3"
)

//go:embed sports.yaml
var defaultSportsYAML []byte

// SportConfig is one entry of the sports catalog
type SportConfig struct {
	DisplayName    string                   `json:"display_name" yaml:"display_name" validate:"required"`
	WinningScore   int                      `json:"winning_score" yaml:"winning_score" validate:"gt=0"`
	DedupThreshold float64                  `json:"dedup_threshold,omitempty" yaml:"dedup_threshold,omitempty" validate:"gte=0,lte=1"`
	Points         []PointValueConfig       `json:"points" yaml:"points" validate:"required,min=1,dive"`
	Fallback       []FallbackQuestionConfig `json:"fallback,omitempty" yaml:"fallback,omitempty" validate:"dive"`
}

// PointValueConfig holds the prompt material for one (sport, points) pair
type PointValueConfig struct {
	Value     int      `json:"value" yaml:"value" validate:"gt=0"`
	Label     string   `json:"label" yaml:"label" validate:"required"`
	Guideline string   `json:"guideline" yaml:"guideline"`
	Hints     []string `json:"hints" yaml:"hints" validate:"dive,required"`
	Rules     []string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// FallbackQuestionConfig is a static question served when the bank and generation both fail
type FallbackQuestionConfig struct {
	Text          string   `json:"text" yaml:"text" validate:"required"`
	Options       []string `json:"options" yaml:"options" validate:"len=4,unique,dive,required"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer" validate:"required"`
	Explanation   string   `json:"explanation" yaml:"explanation"`
}

var (
	defaultSportsOnce sync.Once
	defaultSports     map[string]SportConfig
	defaultSportsErr  error
)

// DefaultSports returns a copy of the embedded sports catalog. It is parsed once.
func DefaultSports() (map[string]SportConfig, error) {
	defaultSportsOnce.Do(func() {
		var sports map[string]SportConfig
		if err := yaml.Unmarshal(defaultSportsYAML, &sports); err != nil {
			defaultSportsErr = contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse embedded sports catalog: %w", err)
			return
		}
		defaultSports = sports
	})
	if defaultSportsErr != nil {
		return nil, defaultSportsErr
	}

	out := make(map[string]SportConfig, len(defaultSports))
	for k, v := range defaultSports {
		out[k] = v
	}
	return out, nil
}

// SportNames returns the catalog keys in sorted order
func (c *Config) SportNames() []string {
	names := make([]string, 0, len(c.Sports))
	for name := range c.Sports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sport looks up a catalog entry
func (c *Config) Sport(category string) (SportConfig, bool) {
	s, ok := c.Sports[category]
	return s, ok
}

// PointValues returns the legal point values of a sport, or nil for an unknown sport
func (c *Config) PointValues(category string) []int {
	s, ok := c.Sports[category]
	if !ok {
		return nil
	}
	values := make([]int, 0, len(s.Points))
	for _, p := range s.Points {
		values = append(values, p.Value)
	}
	return values
}

// PointValue returns the prompt material for a (sport, points) pair
func (c *Config) PointValue(category string, points int) (PointValueConfig, bool) {
	s, ok := c.Sports[category]
	if !ok {
		return PointValueConfig{}, false
	}
	for _, p := range s.Points {
		if p.Value == points {
			return p, true
		}
	}
	return PointValueConfig{}, false
}

// IsValidDifficulty reports whether points is a legal value for the sport
func (c *Config) IsValidDifficulty(category string, points int) bool {
	_, ok := c.PointValue(category, points)
	return ok
}

// DedupThreshold returns the similarity threshold above which a candidate counts as a duplicate
func (c *Config) DedupThreshold(category string) float64 {
	if s, ok := c.Sports[category]; ok && s.DedupThreshold > 0 {
		return s.DedupThreshold
	}
	return c.Questions.DefaultDedupThreshold
}

func (s SportConfig) validateFallback(name string) error {
	for i, f := range s.Fallback {
		if !slices.Contains(f.Options, f.CorrectAnswer) {
			return contextutils.NewAppError(contextutils.ErrorCodeValidationFailed, contextutils.SeverityError,
				"Validation failed", fmt.Sprintf("sports.%s.fallback[%d]: correct_answer %q is not one of the options", name, i, f.CorrectAnswer))
		}
	}
	return nil
}
