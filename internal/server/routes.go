package server

import (
	"embed"
	"html/template"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"Lunara_V0.1/internal/utility"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateRenderer is a custom html/template renderer for Echo framework
type TemplateRenderer struct {
	templates *template.Template
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Renderer = &TemplateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}

	e.Use(LoggerMiddleware)
	e.Use(s.SessionMiddleware)

	// Pages
	e.GET("/", s.renderHomeHandler)
	e.POST("/", s.startSessionHandler)
	e.GET("/onboarding", s.renderOnboardingHandler)
	e.POST("/onboarding", s.onboardingHandler)
	e.GET("/chat", s.renderChatHandler)
	e.GET("/health", s.healthHandler)

	// JSON API
	api := e.Group("/api")
	api.Use(s.rateLimiter())
	api.POST("/chat", s.chatHandler)
	api.POST("/start_meal_planner", s.startMealPlannerHandler)
	api.POST("/submit_meal_planner", s.submitMealPlannerHandler)
	api.GET("/quiz", s.quizHandler)

	return e
}

func (s *Server) healthHandler(c echo.Context) error {
	store := s.db.Health()

	host := map[string]string{}
	if v, err := mem.VirtualMemory(); err == nil {
		host["mem_total_mb"] = strconv.FormatUint(v.Total/1024/1024, 10)
		host["mem_used_percent"] = strconv.FormatFloat(v.UsedPercent, 'f', 1, 64)
	} else {
		log.Warn().Err(err).Msg("healthHandler: could not read host memory")
	}

	status := http.StatusOK
	if store["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]interface{}{
		"store": store,
		"host":  host,
	})
}

// rateLimiter throttles the JSON API per client IP.
func (s *Server) rateLimiter() echo.MiddlewareFunc {
	burst := int(math.Ceil(s.cfg.APIRateLimit)) * 2
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.cfg.APIRateLimit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return utility.GetRealIP(c), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			utility.LoggerFromContext(c).Warn().Str("ip", identifier).Msg("rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please slow down"})
		},
	})
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(utility.ContextKeyRequestID, requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set(utility.ContextKeyLogger, &logger)
		c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))

		return next(c)
	}
}

// SessionMiddleware copies the identity from the signed session cookie into the context.
// A missing or tampered cookie simply leaves no identity.
func (s *Server) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := s.sessions.Get(c.Request(), sessionName)
		if err != nil {
			utility.LoggerFromContext(c).Debug().Err(err).Msg("ignoring unreadable session cookie")
		} else if identity, ok := sess.Values[sessionIdentityKey].(string); ok && identity != "" {
			c.Set(utility.ContextKeyIdentity, identity)
		}
		return next(c)
	}
}
