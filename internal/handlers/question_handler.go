package handlers

import (
	"net/http"

	"sportstrivia/internal/config"
	"sportstrivia/internal/middleware"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"
	contextutils "sportstrivia/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	"go.opentelemetry.io/otel/attribute"
)

// QuestionHandler serves questions to game clients
type QuestionHandler struct {
	selection services.SelectionServiceInterface
	preloader services.PreloaderInterface
	cfg       *config.Config
	logger    *observability.Logger
}

// NewQuestionHandler creates a new QuestionHandler
func NewQuestionHandler(selection services.SelectionServiceInterface, preloader services.PreloaderInterface, cfg *config.Config, logger *observability.Logger) *QuestionHandler {
	return &QuestionHandler{
		selection: selection,
		preloader: preloader,
		cfg:       cfg,
		logger:    logger,
	}
}

// QuestionResponse is the JSON shape of a served question
type QuestionResponse struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Sport         string   `json:"sport"`
	Points        int      `json:"points"`
	Source        string   `json:"source"`
}

func toQuestionResponse(q *models.Question) QuestionResponse {
	return QuestionResponse{
		ID:            q.ID,
		Text:          q.Text,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Sport:         string(q.Category),
		Points:        q.Difficulty,
		Source:        string(q.Source),
	}
}

// PreloadRequest asks for a background warm-up of one sport
type PreloadRequest struct {
	Sport string `json:"sport" binding:"required"`
}

// GetNextQuestion handles GET /v1/questions/next?sport=&points=.
// Once the parameters parse it always answers 200; the selection policy falls back instead of failing.
func (h *QuestionHandler) GetNextQuestion(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_next_question")
	defer observability.FinishSpan(span, nil)

	query := c.Request.URL.Query()
	var sport string
	if err := runtime.BindQueryParameter("form", true, true, "sport", query, &sport); err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid sport parameter",
			err.Error(),
			err,
		))
		return
	}
	var points int
	if err := runtime.BindQueryParameter("form", true, true, "points", query, &points); err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid points parameter",
			"points must be an integer",
			err,
		))
		return
	}

	category := models.NormalizeCategory(sport)
	span.SetAttributes(observability.AttributeCategory(category), observability.AttributeDifficulty(points))

	q := h.selection.GetQuestion(ctx, category, points)
	span.SetAttributes(attribute.String("question.source", string(q.Source)))

	c.JSON(http.StatusOK, toQuestionResponse(q))
}

// PreloadGame handles POST /v1/games/preload. The warm-up runs in the background.
func (h *QuestionHandler) PreloadGame(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "preload_game")
	defer observability.FinishSpan(span, nil)

	var req PreloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid preload request",
			err.Error(),
			err,
		))
		return
	}

	category := models.NormalizeCategory(req.Sport)
	span.SetAttributes(observability.AttributeCategory(category))
	if _, ok := h.cfg.Sport(string(category)); !ok {
		middleware.HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown sport %q", req.Sport))
		return
	}

	status := "started"
	switch {
	case h.cfg.Preload.Disabled:
		status = "disabled"
	case !h.preloader.PreloadAsync(category):
		status = "already_running"
	}
	span.SetAttributes(attribute.String("preload.status", status))
	h.logger.Info(ctx, "Preload requested", map[string]interface{}{
		"sport":  string(category),
		"status": status,
	})

	c.JSON(http.StatusAccepted, gin.H{"sport": string(category), "status": status})
}
