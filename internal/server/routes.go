package server

import (
	"net/http"

	"NutriLens/internal/auth"
	"NutriLens/internal/utility"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	extractor, err := utility.NewIPExtractor(s.cfg.TrustedProxies)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring trusted proxies, using remote address for client IP")
		extractor = echo.ExtractIPDirect()
	}
	e.IPExtractor = extractor
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", headerModel, headerFallback},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.MaxUploadSize != "" {
		e.Use(middleware.BodyLimit(s.cfg.MaxUploadSize))
	}

	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)

	api := e.Group("/api")
	api.Use(s.limiter.Middleware())

	// AI routes work anonymously; a valid token only enables history.
	optional := api.Group("")
	optional.Use(auth.OptionalJwtMiddleware(s.cfg.SessionSecret))
	optional.POST("/analyze", s.analyzeHandler)
	optional.POST("/chat", s.chatHandler)

	protected := api.Group("")
	protected.Use(auth.JwtAuthMiddleware(s.cfg.SessionSecret))
	protected.GET("/analyses", s.listAnalysesHandler)

	return e
}

// LoggerMiddleware tags every request with an id and hands a child logger to
// both the echo context and the request context.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)
		c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))

		return next(c)
	}
}
