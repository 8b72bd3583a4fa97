package router // package router wires handlers and middleware onto an Echo instance

import (
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // stock Echo middleware
	"github.com/redis/go-redis/v9"                  // Redis client shared by cache and rate limiter

	"github.com/iliyamo/balance-dashboard/internal/config"
	"github.com/iliyamo/balance-dashboard/internal/handler"
	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/middleware"
	"github.com/iliyamo/balance-dashboard/internal/validate"
)

// Deps is everything the routes need. Redis may be nil, in which case the
// cache and the rate limiter pass requests straight through.
type Deps struct {
	Cfg       config.Config
	Log       logging.Logger
	Reporter  logging.Reporter
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig

	Local  handler.Pinger
	Stores map[string]handler.Pinger

	Auth      *handler.AuthHandler
	Account   *handler.AccountHandler
	Support   *handler.SupportHandler
	Admin     *handler.AdminHandler
	Analytics *handler.AnalyticsHandler
}

// New builds the Echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.Reporter == nil {
		d.Reporter = logging.NopReporter()
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log, d.Reporter)
	e.Validator = validate.EchoValidator{}

	// Pre middleware runs before routing, so the date normalizer sees the
	// query before any handler or cache key reads it.
	e.Pre(echomw.RemoveTrailingSlash())
	e.Pre(middleware.DateParams(middleware.DefaultDateParamsConfig(d.Cfg.Location, d.Log)))
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())

	RegisterRoutes(e, d.Local, d.Stores)
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	RegisterAuth(e, d.Auth, limiter, d.Cfg.JWTSecret)
	RegisterAccount(e, d.Account, d.Support, d.Cfg.JWTSecret)
	RegisterAdmin(e, d.Admin, d.Support, d.Cfg.JWTSecret)
	RegisterAnalytics(e, d.Analytics, middleware.NewRedisCache(d.Cache, d.Redis, d.Log), d.Cfg.JWTSecret)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, local handler.Pinger, stores map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health(local, stores))
}

// RegisterAuth registers login, signup, token and password recovery
// routes. Every credential-accepting route goes through the limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc, jwtSecret string) {
	g := e.Group("/api", limiter)
	g.POST("/login", a.Login)
	g.POST("/signup", a.Signup)
	g.POST("/auth/refresh", a.Refresh)
	g.POST("/send-verification-code", a.SendCode)
	g.POST("/verify-code", a.VerifyCode)

	pr := g.Group("/password-reset")
	pr.POST("/send-code", a.ResetSendCode)
	pr.POST("/verify-code", a.ResetVerifyCode)
	pr.POST("/questions", a.ResetQuestions)
	pr.POST("/verify-answers", a.ResetVerifyAnswers)
	pr.POST("/reset", a.ResetPassword)

	// Logout only needs the refresh token in the body.
	e.POST("/api/logout", a.Logout)
	e.GET("/api/check-auth", a.CheckAuth, middleware.OptionalJWT(jwtSecret))

	auth := e.Group("/api", middleware.JWTAuth(jwtSecret))
	auth.GET("/user-info", a.UserInfo)
	auth.GET("/dashboard", a.Dashboard)
}
