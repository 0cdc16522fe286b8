package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/weiwangfds/tis/config"
	_ "github.com/weiwangfds/tis/docs" // swagger docs
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/handler"
	"github.com/weiwangfds/tis/internal/middleware"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/academic"
	"github.com/weiwangfds/tis/internal/service/account"
	"github.com/weiwangfds/tis/internal/service/archive"
	"github.com/weiwangfds/tis/internal/service/planning"
	"github.com/weiwangfds/tis/internal/service/report"
	"github.com/weiwangfds/tis/internal/service/storage"
	"github.com/weiwangfds/tis/internal/service/subject"
	"github.com/weiwangfds/tis/internal/service/teacher"
	"gorm.io/gorm"
)

// AuditLog 审计日志：中间件写入，下载接口读取
type AuditLog interface {
	middleware.EventWriter
	handler.AuditLog
}

// Dependencies 路由需要的外部依赖
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	AuditLog AuditLog
	Storage  storage.ConfigService
	Archiver archive.ArchiveService
}

// Router 路由配置
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// NewRouter 创建路由实例
func NewRouter(deps Dependencies) *Router {
	// 测试时保留调用方设置的模式
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	cfg := deps.Config
	db := deps.DB

	// 初始化服务
	tokens := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
	accountService := account.NewAccountService(db, tokens)
	academicService := academic.NewAcademicService(db)
	subjectService := subject.NewSubjectService(db)
	teacherService := teacher.NewTeacherService(db)
	planningService := planning.NewPlanningService(db)
	reportService := report.NewReportService(db)

	// 初始化处理器
	cookie := handler.SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Auth.SecureCookie}
	authn := middleware.NewAuthenticator(db, tokens, cfg.Auth.CookieName)
	cookie.Name = authn.CookieName()

	sessionHandler := handler.NewSessionHandler(accountService, academicService, cookie)
	scopeHandler := handler.NewScopeHandler(academicService, accountService, cookie)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	teacherHandler := handler.NewTeacherHandler(teacherService)
	planningHandler := handler.NewPlanningHandler(planningService)
	userHandler := handler.NewUserHandler(accountService)
	auditHandler := handler.NewAuditHandler(deps.AuditLog)
	reportHandler := handler.NewReportHandler(reportService)
	storageHandler := handler.NewStorageHandler(deps.Storage, deps.Archiver)

	// 使用中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Language())

	// 配置CORS
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	engine.Use(middleware.Audit(deps.AuditLog))
	engine.Use(middleware.RequestLogger())
	engine.Use(authn.Identify())

	// Swagger文档路由
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Service is running",
		})
	})

	// 数据库状态检查
	engine.GET("/db/status", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			response.InternalServerError(c, "Database connection error")
			return
		}
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			response.InternalServerError(c, "Database ping failed")
			return
		}
		response.Success(c, gin.H{"status": "Database connection OK"})
	})

	// 会话
	engine.GET("/", sessionHandler.Index)
	engine.POST("/login", sessionHandler.Login)
	engine.GET("/logout", sessionHandler.Logout)

	// 以下接口需要登录
	protected := engine.Group("", authn.Require())
	{
		protected.GET("/dashboard", sessionHandler.Dashboard)

		// 分校和学年范围
		protected.POST("/scope/branch", scopeHandler.SwitchBranch)
		protected.POST("/scope/academic-year", scopeHandler.SwitchYear)
		protected.POST("/admin/current-year", scopeHandler.SetCurrentYear)
		protected.POST("/developer/open-academic-year", scopeHandler.OpenYear)
		protected.GET("/academic-years", scopeHandler.ListYears)
		protected.GET("/branches", scopeHandler.ListBranches)

		// 科目管理
		subjects := protected.Group("/subjects")
		{
			subjects.GET("", subjectHandler.List)
			subjects.POST("", subjectHandler.Create)
			subjects.GET("/edit/:id", subjectHandler.Get)
			subjects.POST("/edit/:id", subjectHandler.Update)
			subjects.GET("/delete/:id", subjectHandler.Delete)
			subjects.POST("/delete-bulk", subjectHandler.BulkDelete)
			subjects.GET("/template", subjectHandler.Template)
			subjects.GET("/export", subjectHandler.Export)
			subjects.POST("/import", subjectHandler.Import)
		}

		// 教师管理
		teachers := protected.Group("/teachers")
		{
			teachers.GET("", teacherHandler.List)
			teachers.POST("", teacherHandler.Create)
			teachers.GET("/edit/:id", teacherHandler.Get)
			teachers.POST("/edit/:id", teacherHandler.Update)
			teachers.GET("/delete/:id", teacherHandler.Delete)
		}

		// 班级规划
		plans := protected.Group("/planning")
		{
			plans.GET("", planningHandler.Overview)
			plans.POST("", planningHandler.Create)
			plans.GET("/edit/:id", planningHandler.Get)
			plans.POST("/edit/:id", planningHandler.Update)
			plans.GET("/delete/:id", planningHandler.Delete)
		}

		// 账号管理
		users := protected.Group("/users")
		{
			users.GET("", userHandler.List)
			users.POST("", userHandler.Create)
			users.GET("/edit/:id", userHandler.Get)
			users.POST("/edit/:id", userHandler.Update)
			users.GET("/delete/:id", userHandler.Delete)
			users.POST("/delete-bulk", userHandler.BulkDelete)
		}

		// 审计日志和报表
		protected.GET("/admin/audit-log", auditHandler.Download)
		protected.GET("/reports/allocation-plan.xlsx", reportHandler.AllocationPlan)

		// 对象存储和审计归档
		store := protected.Group("/developer/storage")
		{
			store.GET("", storageHandler.List)
			store.POST("", storageHandler.Create)
			store.GET("/active", storageHandler.Active)
			store.GET("/logs", storageHandler.Logs)
			store.POST("/archive", storageHandler.Archive)
			store.GET("/:id", storageHandler.Get)
			store.PUT("/:id", storageHandler.Update)
			store.DELETE("/:id", storageHandler.Delete)
			store.POST("/:id/activate", storageHandler.Activate)
			store.POST("/:id/test", storageHandler.Test)
			store.PUT("/:id/toggle", storageHandler.Toggle)
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Resource Not Found")
	})

	return &Router{
		engine: engine,
		db:     db,
	}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetDB 获取数据库连接
func (r *Router) GetDB() *gorm.DB {
	return r.db
}
