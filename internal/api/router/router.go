package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"schologic-practicum/backend/config"
	"schologic-practicum/backend/internal/api/handler"
	"schologic-practicum/backend/internal/api/middleware"
	"schologic-practicum/backend/pkg/jwt"
	"schologic-practicum/backend/pkg/redis"
)

// maxBodyBytes 全局请求体上限；日历导入另有限制
const maxBodyBytes = 4 << 20

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单与限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	// 避免把 nil 指针装进接口
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist, limiter = rdb, rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db))

	instructor := middleware.RoleAuth(jwt.RoleInstructor)
	student := middleware.RoleAuth(jwt.RoleStudent)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 单位指导老师审核链接（无需登录，按 IP 限流）
		v1.POST("/verify/:log_id",
			middleware.RateLimit(limiter, cfg.Practicum.RateLimit.Limit, cfg.Practicum.RateLimit.Window),
			h.Log.VerifyByToken,
		)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Session.Logout)

			// 实践项目模块
			practicums := authorized.Group("/practicums")
			{
				practicums.POST("", instructor, h.Practicum.Create)
				practicums.GET("", instructor, h.Practicum.ListMine)
				practicums.GET("/:id", h.Practicum.Get) // 所有者或已加入的学生（Service 层鉴权）
				practicums.PUT("/:id", instructor, h.Practicum.Update)
				practicums.PUT("/:id/rubrics/:component", instructor, h.Practicum.UpdateRubric)
				practicums.POST("/:id/timeline", instructor, h.Practicum.AddTimelineEvent)
				practicums.POST("/:id/timeline/import", instructor, h.Practicum.ImportTimeline)
				practicums.GET("/:id/timeline/export", h.Export.ExportTimeline)
				practicums.GET("/:id/overview", instructor, h.Practicum.Overview)

				practicums.GET("/:id/enrollments", instructor, h.Enrollment.ListByPracticum)

				practicums.POST("/:id/logs", student, h.Log.SaveDraft)
				practicums.GET("/:id/logs", h.Log.List)
				practicums.GET("/:id/submissions", h.Log.Submissions)

				practicums.GET("/:id/progress", student, h.Progress.StudentProgress)
				practicums.GET("/:id/unread", instructor, h.Progress.UnreadCounts)

				practicums.GET("/:id/grades", instructor, h.Grading.Grades)
				practicums.POST("/:id/grades/sync", instructor, h.Grading.SyncSupervisorGrades)
				practicums.GET("/:id/grades/export", instructor, h.Export.ExportGrades)
			}

			// 报名模块
			enrollments := authorized.Group("/enrollments")
			{
				enrollments.POST("/join", student, h.Enrollment.Join)
				enrollments.GET("/me", student, h.Enrollment.ListMine)
				enrollments.GET("/:id", h.Enrollment.Get) // 本人或项目所有者（Service 层鉴权）
				enrollments.PUT("/:id/registration", student, h.Enrollment.SaveRegistration)
				enrollments.POST("/:id/submit", student, h.Enrollment.Submit)
				enrollments.DELETE("/:id", student, h.Enrollment.Withdraw)
				enrollments.POST("/:id/approve", instructor, h.Enrollment.Approve)
				enrollments.POST("/:id/reject", instructor, h.Enrollment.Reject)

				enrollments.GET("/:id/progress", instructor, h.Progress.EnrollmentProgress)
				enrollments.PUT("/:id/grades/:component", instructor, h.Grading.SetComponent)
				enrollments.POST("/:id/grades/:component/score", instructor, h.Grading.ScoreComponent)
				enrollments.POST("/:id/supervisor-report", instructor, h.Grading.RecordSupervisorReport)
			}

			// 日志模块
			logs := authorized.Group("/logs")
			{
				logs.GET("/:id", h.Log.Get)
				logs.PUT("/:id", student, h.Log.UpdateDraft)
				logs.POST("/:id/submit", student, h.Log.Submit)
				logs.DELETE("/:id", student, h.Log.Delete)
				logs.POST("/:id/verify", instructor, h.Log.Verify)
				logs.POST("/:id/reject", instructor, h.Log.Reject)
				logs.POST("/:id/read", instructor, h.Log.MarkRead)
			}
		}
	}

	return r
}

// healthCheck 数据库可达时返回 ok
func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
