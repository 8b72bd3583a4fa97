package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/handler"
	"github.com/iliyamo/balance-dashboard/internal/middleware"
	"github.com/iliyamo/balance-dashboard/internal/model"
)

// RegisterAdmin registers user management, system info and the ticket
// mutations. All of them require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, s *handler.SupportHandler, jwtSecret string) {
	admin := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin)}

	g := e.Group("/api/admin", admin...)
	g.GET("/users", h.ListUsers)
	g.POST("/users/create", h.CreateUser)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id", h.UpdateUser)
	g.GET("/system/info", h.SystemInfo)

	e.PUT("/api/support/requests/:id", s.Update, admin...)
	e.DELETE("/api/support/requests/:id", s.Delete, admin...)
}
