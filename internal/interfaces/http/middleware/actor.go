package middleware

import (
	"net/http"
	"regexp"

	"github.com/clinic/pharmacy/internal/infrastructure/logger"
	"github.com/clinic/pharmacy/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ActorHeader carries the acting user. Authentication happens upstream.
const (
	ActorHeader = "X-User-ID"
	ActorKey    = "user_id"
)

var actorPattern = regexp.MustCompile(`^[A-Za-z0-9._@:\-]{1,64}$`)

// Actor copies X-User-ID into the gin and request contexts. A malformed
// value is rejected; a missing one leaves the actor empty.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader(ActorHeader)
		if actor == "" {
			c.Next()
			return
		}
		if !actorPattern.MatchString(actor) {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "invalid "+ActorHeader+" header", GetRequestID(c)))
			return
		}
		c.Set(ActorKey, actor)
		ctx, _ := logger.WithUserID(c.Request.Context(), logger.FromContext(c.Request.Context()), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetActor returns the actor set by Actor, or ""
func GetActor(c *gin.Context) string {
	return c.GetString(ActorKey)
}
