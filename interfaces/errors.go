package interfaces

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"staff-arabia/domain"
)

// respondError writes err as {"detail": ...}. Validation failures become 422 with the
// field list; every storage failure is a 500 carrying its message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		logger.Error("unhandled error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	switch de.Type {
	case domain.ErrTypeInvalidInput:
		var verr *domain.ValidationError
		if errors.As(de.Err, &verr) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": verr.Fields})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": errorDetail(de)})
	case domain.ErrTypeUnavailable:
		logger.Warn("request rejected", zap.String("reason", de.Message))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": de.Message})
	default:
		logger.Error("request failed",
			zap.Error(de),
			zap.ByteString("stack", de.StackTrace()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": errorDetail(de)})
	}
}

// errorDetail is the free-text message shown to clients: the underlying cause when there is one.
func errorDetail(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.Err != nil {
			return de.Err.Error()
		}
		return de.Message
	}
	return err.Error()
}
