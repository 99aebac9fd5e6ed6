package middleware

import (
	"strings"

	contextutils "sportstrivia/internal/utils"

	"github.com/gin-gonic/gin"
)

// GameIDHeader carries the client's game identifier
const GameIDHeader = "X-Game-ID"

// maxGameIDLength bounds what a client can push into every log line
const maxGameIDLength = 64

// GameID copies the X-Game-ID header into the request context so logs and spans
// for the request carry game_id. Requests without the header pass through unchanged.
func GameID() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := strings.TrimSpace(c.GetHeader(GameIDHeader))
		if gameID != "" {
			if len(gameID) > maxGameIDLength {
				gameID = gameID[:maxGameIDLength]
			}
			c.Request = c.Request.WithContext(contextutils.WithGameID(c.Request.Context(), gameID))
		}
		c.Next()
	}
}
