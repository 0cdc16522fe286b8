// @title TIS API
// @version 1.0
// @description Teacher Information System: subjects, teachers, class planning, accounts and audit log

// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weiwangfds/tis/config"
	"github.com/weiwangfds/tis/internal/audit"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/router"
	"github.com/weiwangfds/tis/internal/service/archive"
	"github.com/weiwangfds/tis/internal/service/storage"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 写入基础数据
	seed := database.SeedData{
		BranchName:      cfg.Seed.BranchName,
		YearName:        cfg.Seed.AcademicYear,
		DeveloperUserID: cfg.Seed.DeveloperUserID,
	}
	if cfg.Seed.DeveloperPassword != "" {
		hash, err := auth.HashPassword(cfg.Seed.DeveloperPassword)
		if err != nil {
			logger.Fatalf("Failed to hash developer password: %v", err)
		}
		seed.DeveloperPasswordHash = hash
	}
	if err := database.Seed(db, seed); err != nil {
		logger.Fatalf("Failed to seed database: %v", err)
	}

	// 审计日志
	auditWriter, err := audit.NewWriter(cfg.Audit)
	if err != nil {
		logger.Fatalf("Failed to open audit log: %v", err)
	}
	defer auditWriter.Close()

	// 对象存储和归档服务
	storageService := storage.NewConfigService(db, nil)
	archiveService := archive.NewArchiveService(db, storageService, auditWriter, cfg.Archive)

	// 初始化路由
	r := router.NewRouter(router.Dependencies{
		Config:   cfg,
		DB:       db,
		AuditLog: auditWriter,
		Storage:  storageService,
		Archiver: archiveService,
	})

	// 启动归档服务
	archiveCtx, cancelArchive := context.WithCancel(context.Background())
	if cfg.Archive.Enabled {
		if err := archiveService.Start(archiveCtx); err != nil {
			logger.Errorf("Failed to start archive service: %v", err)
		}
	}

	srv := newServer(cfg.Server, r.GetEngine())

	go func() {
		logger.Infof("服务器启动在 %s (HTTPS: %v, HTTP/2: %v)", srv.Addr, cfg.Server.EnableHTTPS, cfg.Server.EnableHTTP2)
		var err error
		if cfg.Server.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	// 先停止归档服务
	cancelArchive()
	if err := archiveService.Stop(); err != nil {
		logger.Errorf("Error stopping archive service: %v", err)
	}

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("服务器强制关闭: %v", err)
	}

	logger.Info("服务器已退出")
}

// newServer 按配置创建HTTP服务器
// 未启用HTTPS时通过 h2c 支持明文 HTTP/2
func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	if cfg.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"h2", "http/1.1"},
		}
		if cfg.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				logger.Fatalf("配置HTTP/2失败: %v", err)
			}
		}
		return srv
	}

	if cfg.EnableHTTP2 {
		srv.Handler = h2c.NewHandler(handler, &http2.Server{})
	}
	return srv
}
