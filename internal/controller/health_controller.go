package controller

import (
	"net/http"

	"ielts_exam_backend/internal/service"
	"ielts_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Rotator *service.CredentialRotator
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, rotator *service.CredentialRotator) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Rotator: rotator}
}

// @Summary 健康检查
// @Description 检查数据库、缓存和 AI 密钥状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	components := gin.H{"database": "up"}
	if c.Redis != nil {
		components["redis"] = "up"
		if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
			components["redis"] = "down"
		}
	}

	status := "ok"
	if c.Rotator.AllInvalid() {
		status = "degraded"
	}

	util.Success(ctx, gin.H{
		"status":      status,
		"components":  components,
		"credentials": c.Rotator.States(),
	})
}
