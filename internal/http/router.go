package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/mkovtun/contentpulse-backend/internal/http/handlers"
	httpMW "github.com/mkovtun/contentpulse-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *httpMW.AuthMiddleware

	AdjustmentHandler *httpH.AdjustmentHandler
	PreferenceHandler *httpH.PreferenceHandler
	PlanHandler       *httpH.PlanHandler
	CycleHandler      *httpH.CycleHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Adjustments
		if cfg.AdjustmentHandler != nil {
			protected.GET("/adjustments", cfg.AdjustmentHandler.ListAdjustments)
			protected.POST("/adjustments/:id/approve", cfg.AdjustmentHandler.ApproveAdjustment)
			protected.POST("/adjustments/:id/reject", cfg.AdjustmentHandler.RejectAdjustment)
		}

		// Preference model and locks
		if cfg.PreferenceHandler != nil {
			protected.GET("/preference-model", cfg.PreferenceHandler.GetPreferenceModel)
			protected.POST("/locks", cfg.PreferenceHandler.LockSetting)
			protected.POST("/locks/remove", cfg.PreferenceHandler.UnlockSetting)
		}

		// Weekly plan
		if cfg.PlanHandler != nil {
			protected.GET("/plan/week", cfg.PlanHandler.GetWeekPlan)
			protected.POST("/slots/:id/transition", cfg.PlanHandler.TransitionSlot)
		}

		// Cycle triggers
		if cfg.CycleHandler != nil {
			protected.POST("/cycles/:kind", cfg.CycleHandler.TriggerCycle)
		}
	}

	return r
}
