package main

import (
	"pickme-intel/internal/auth"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/httpapi"
	"pickme-intel/internal/rbac"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter builds the engine with middleware and routes.
func newRouter(a *app, h httpapi.Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(a.log))
	r.Use(a.metrics.Middleware())

	registerRoutes(r, a, h)
	return r
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app, h httpapi.Handlers) {
	// public
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	if a.limiter != nil {
		api.Use(httpapi.RateLimit(a.limiter))
	}
	api.POST("/auth/login", h.Login)

	// everything below requires a valid access token
	protected := api.Group("")
	protected.Use(auth.RequireAccessToken(h.Auth))
	protected.GET("/auth/me", h.Me)

	staff := rbac.RequireAnyRole(rbac.RoleModerator)
	adminOnly := rbac.RequireAdmin()

	// CREDITS routes
	cr := protected.Group("/credits")
	{
		cr.POST("/add", adminOnly, h.AddCredits)
		cr.POST("/deduct", adminOnly, h.DeductCredits)
		cr.POST("/adjust", adminOnly, h.AdjustCredits)
		cr.GET("/transactions", staff, h.ListTransactions)
		cr.GET("/officer/:officer_id", staff, h.OfficerTransactions)
		cr.GET("/stats", staff, h.Stats)
		cr.GET("/reconcile/:officer_id", adminOnly, h.Reconcile)
	}

	// OFFICERS routes
	of := protected.Group("/officers")
	{
		of.POST("", adminOnly, h.CreateOfficer)
		of.GET("", staff, h.ListOfficers)
		of.GET("/:id", staff, h.GetOfficer)
		of.GET("/:id/stats", staff, h.OfficerStats)
		of.PUT("/:id", adminOnly, h.UpdateOfficer)
		of.PATCH("/:id/status", adminOnly, h.UpdateOfficerStatus)
		of.DELETE("/:id", adminOnly, h.DeleteOfficer)
	}

	// QUERIES routes
	q := protected.Group("/queries")
	q.Use(staff)
	{
		q.GET("", h.ListQueries)
		q.GET("/catalog", h.Catalog)
		q.GET("/stats/summary", h.QueryStats)
		q.GET("/:id", h.GetQuery)
		q.POST("/:officer_id", credits.RequireSufficientCredits(h.Credits, h.QueryCost), h.RunQuery)
	}
}
