package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/noisesurvey/internal/clock"
	"github.com/smallbiznis/noisesurvey/internal/config"
	"github.com/smallbiznis/noisesurvey/internal/observability"
	obslogger "github.com/smallbiznis/noisesurvey/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/noisesurvey/internal/observability/metrics"
	obstracing "github.com/smallbiznis/noisesurvey/internal/observability/tracing"
	observationdomain "github.com/smallbiznis/noisesurvey/internal/observation/domain"
	"github.com/smallbiznis/noisesurvey/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config
	ObsCfg      observability.Config
	Log         *zap.Logger
	Site        *config.SiteConfigHolder
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

// NewEngine builds the gin engine with the middleware chain, templates and
// the 404 and 500 pages.
func NewEngine(p EngineParams) (*gin.Engine, error) {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.CustomRecovery(recoveryHandler(p.Log, p.Site)))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(p.HTTPMetrics.GinMiddleware())
	if len(p.Cfg.CORSAllowedOrigins) > 0 {
		r.Use(CORS(p.Cfg.CORSAllowedOrigins))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.StaticFS("/static", http.FS(web.Static()))
	r.NoRoute(notFoundHandler(p.Site))

	return r, nil
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	site           *config.SiteConfigHolder
	observationSvc observationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Site           *config.SiteConfigHolder
	ObservationSvc observationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("http"),
		clock:          p.Clock,
		site:           p.Site,
		observationSvc: p.ObservationSvc,
	}

	svc.registerSystemRoutes()
	svc.registerSurveyRoutes()
	svc.registerUIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSystemRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/get_time", s.GetTime)
}

func (s *Server) registerSurveyRoutes() {
	s.engine.POST("/submit_survey", s.SubmitSurvey)
	s.engine.GET("/get_survey_data", s.GetSurveyData)
}

func (s *Server) registerUIRoutes() {
	s.engine.GET("/", s.page("landing.html", ""))
	s.engine.GET("/detect", s.page("index.html", "Survey"))
	s.engine.GET("/admin", s.page("admin.html", "Dashboard"))
	s.engine.GET("/thank_you", s.page("thank_you.html", "Thank you"))
}
