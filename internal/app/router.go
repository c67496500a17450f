package app

import (
	"ielts_exam_backend/docs"
	"ielts_exam_backend/internal/controller"
	"ielts_exam_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.GET("/health", c.health.HealthCheck)

	registerSessionRoutes(api.Group("/sessions"), c.examSession)
}

func registerSessionRoutes(rg *gin.RouterGroup, c *controller.ExamSessionController) {
	rg.POST("", c.CreateSession)
	rg.GET("/:id", c.GetSession)
	rg.GET("/:id/status", c.GetStatus)
	rg.POST("/:id/select-phase", c.SelectPhase)

	// 第一阶段
	rg.POST("/:id/generate", c.GeneratePhase1)
	rg.POST("/:id/start-phase1", c.StartPhase1)
	rg.POST("/:id/submit-phase1", c.SubmitPhase1)

	// 第二阶段
	rg.POST("/:id/generate-phase2", c.GeneratePhase2)
	rg.POST("/:id/start-phase2", c.StartPhase2)
	rg.POST("/:id/submit-phase2", c.SubmitPhase2)

	// 成绩
	rg.POST("/:id/aggregate", c.Aggregate)
	rg.POST("/:id/generate-analysis", c.GenerateAnalysis)
}
