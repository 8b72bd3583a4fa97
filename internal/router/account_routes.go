package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/handler"
	"github.com/iliyamo/balance-dashboard/internal/middleware"
)

// RegisterAccount registers the signed-in user's settings and support
// tickets. Ownership checks happen in the handlers.
func RegisterAccount(e *echo.Echo, a *handler.AccountHandler, s *handler.SupportHandler, jwtSecret string) {
	u := e.Group("/api/user", middleware.JWTAuth(jwtSecret))
	u.GET("/profile", a.GetProfile)
	u.PUT("/profile", a.UpdateProfile)
	u.PUT("/change-password", a.ChangePassword)
	u.GET("/security-questions", a.GetSecurityQuestions)
	u.PUT("/security-questions", a.UpdateSecurityQuestions)
	u.GET("/preferences", a.GetPreferences)
	u.PUT("/preferences", a.UpdatePreferences)

	g := e.Group("/api/support", middleware.JWTAuth(jwtSecret))
	g.GET("/requests", s.List)
	g.POST("/requests", s.Create)
	g.GET("/requests/:id", s.Get)
	g.POST("/requests/:id/responses", s.Respond)
}
