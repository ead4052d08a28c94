package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	observationdomain "github.com/smallbiznis/noisesurvey/internal/observation/domain"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetTime reports the server wall clock in the configured time zone.
func (s *Server) GetTime(c *gin.Context) {
	now := s.clock.Now().In(s.cfg.Location())
	c.JSON(http.StatusOK, gin.H{"time": now.Format(observationdomain.TimestampLayout)})
}
