package handlers

import (
	"net/http"

	"sportstrivia/internal/config"
	"sportstrivia/internal/observability"

	"github.com/gin-gonic/gin"
)

// SportsHandler exposes the sports catalog
type SportsHandler struct {
	cfg *config.Config
}

// NewSportsHandler creates a new SportsHandler
func NewSportsHandler(cfg *config.Config) *SportsHandler {
	return &SportsHandler{cfg: cfg}
}

// PointValueSummary is one legal point value of a sport
type PointValueSummary struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// SportSummary is the public view of a catalog entry
type SportSummary struct {
	Sport        string              `json:"sport"`
	DisplayName  string              `json:"display_name"`
	WinningScore int                 `json:"winning_score"`
	Points       []PointValueSummary `json:"points"`
}

// ListSports handles GET /v1/sports
func (h *SportsHandler) ListSports(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_sports")
	defer observability.FinishSpan(span, nil)

	names := h.cfg.SportNames()
	sports := make([]SportSummary, 0, len(names))
	for _, name := range names {
		sport, _ := h.cfg.Sport(name)
		summary := SportSummary{
			Sport:        name,
			DisplayName:  sport.DisplayName,
			WinningScore: sport.WinningScore,
			Points:       make([]PointValueSummary, 0, len(sport.Points)),
		}
		for _, p := range sport.Points {
			summary.Points = append(summary.Points, PointValueSummary{Value: p.Value, Label: p.Label})
		}
		sports = append(sports, summary)
	}
	c.JSON(http.StatusOK, gin.H{"sports": sports})
}
