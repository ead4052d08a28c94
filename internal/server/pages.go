package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/noisesurvey/internal/config"
	obslogger "github.com/smallbiznis/noisesurvey/internal/observability/logger"
	"go.uber.org/zap"
)

type pageData struct {
	Title          string
	Tagline        string
	Page           string
	RefreshSeconds int
}

func newPageData(site *config.SiteConfigHolder, page string) pageData {
	cfg := config.DefaultSiteConfig()
	if site != nil {
		cfg = site.Get()
	}
	return pageData{
		Title:          cfg.Title,
		Tagline:        cfg.Tagline,
		Page:           page,
		RefreshSeconds: cfg.DashboardRefreshSeconds,
	}
}

func (s *Server) page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, newPageData(s.site, title))
	}
}

func notFoundHandler(site *config.SiteConfigHolder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if wantsJSON(c) {
			AbortWithError(c, ErrNotFound)
			return
		}
		c.HTML(http.StatusNotFound, "404.html", newPageData(site, "Not found"))
	}
}

func recoveryHandler(log *zap.Logger, site *config.SiteConfigHolder) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		obslogger.WithContext(c.Request.Context(), log).Error("panic recovered",
			zap.String("path", c.Request.URL.Path),
			zap.String("panic", fmt.Sprint(recovered)),
			zap.Stack("stack"),
		)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		if wantsJSON(c) {
			_, payload := mapError(ErrInternal)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: payload})
			return
		}
		c.HTML(http.StatusInternalServerError, "500.html", newPageData(site, "Error"))
		c.Abort()
	}
}

// wantsJSON reports API callers: JSON requests and anything not asking for HTML.
func wantsJSON(c *gin.Context) bool {
	accept := strings.ToLower(c.GetHeader("Accept"))
	if strings.Contains(accept, "application/json") {
		return true
	}
	return strings.Contains(strings.ToLower(c.ContentType()), "json")
}
