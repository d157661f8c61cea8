package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	auth "github.com/goliatone/go-member-auth"
	"github.com/goliatone/go-member-auth/activitymap"
	"github.com/goliatone/go-member-auth/config"
	"github.com/goliatone/go-member-auth/database"
	"github.com/goliatone/go-member-auth/notifier/smtp"
	"github.com/goliatone/go-member-auth/storage/memblob"
	"github.com/goliatone/go-member-auth/storage/s3blob"
	"github.com/goliatone/go-router"
	"go.uber.org/zap"
)

var bootstrapOnly = flag.Bool("bootstrap-only", false, "Create schema and default roles, then exit")

func main() {
	flag.Parse()

	cfg := config.Load()

	zapLogger, err := auth.NewZap(cfg.IsProduction(), os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := auth.NewZapLogger(zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		zapLogger.Fatal("failed to configure notifier", zap.Error(err))
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		zapLogger.Fatal("failed to configure blob store", zap.Error(err))
	}

	activity, closeActivity, err := newActivitySink(cfg, logger)
	if err != nil {
		zapLogger.Fatal("failed to open activity log", zap.Error(err))
	}
	defer closeActivity()

	svc, err := auth.NewService(auth.ServiceOptions{
		DB: db,
		KDF: auth.KDFConfig{
			Iterations:    cfg.KDF.Iterations,
			KeyLength:     cfg.KDF.KeyLength,
			Digest:        cfg.KDF.Digest,
			SaltBytes:     cfg.KDF.SaltBytes,
			MaxConcurrent: cfg.KDF.MaxConcurrent,
		},
		Notifier:           notifier,
		Blobs:              blobs,
		Messages:           auth.Messages{AppName: cfg.AppName},
		Activity:           activity,
		Logger:             logger,
		TokenSecret:        cfg.Token.Secret,
		TokenIssuer:        cfg.Token.Issuer,
		TokenTTL:           cfg.Token.TTL,
		LinkBase:           cfg.Token.LinkBase,
		DocumentPrefix:     cfg.DocumentPrefix,
		TempPasswordLength: cfg.TempPasswordLength,
	})
	if err != nil {
		zapLogger.Fatal("failed to create service", zap.Error(err))
	}

	if err := svc.Bootstrap(ctx); err != nil {
		zapLogger.Fatal("failed to bootstrap database", zap.Error(err))
	}
	if *bootstrapOnly {
		zapLogger.Info("bootstrap completed")
		return
	}

	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{
			AppName:      cfg.AppName,
			ErrorHandler: auth.ErrorHandler(logger),
			BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		})
		app.Use(recover.New())
		return app
	})

	if mem, ok := blobs.(*memblob.Store); ok {
		srv.Router().Get("/files/*", func(ctx router.Context) error {
			obj, found := mem.Get(ctx.Param("*"))
			if !found {
				return ctx.Status(router.StatusNotFound).SendString("Not Found")
			}
			if obj.ContentType != "" {
				ctx.SetHeader("Content-Type", obj.ContentType)
			}
			return ctx.Send(obj.Body)
		})
	}

	sessions := auth.NewCookieSessions(auth.SessionConfig{
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
		CookieSameSite: cfg.Session.CookieSameSite,
		Expiration:     cfg.Session.Expiration,
		Secret:         cfg.Session.Secret,
		Issuer:         cfg.Token.Issuer,
	})

	controller := auth.NewController(svc, sessions,
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	auth.RegisterRoutes(srv.Router().Group("/auth"), controller)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zapLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
	svc.Dispatcher.Wait()

	zapLogger.Info("server stopped")
}

func newNotifier(cfg config.Config, logger auth.Logger) (auth.Notifier, error) {
	if !cfg.SMTP.Enabled() {
		logger.Warn("SMTP_HOST not set, notifications are only logged")
		return auth.LogNotifier{Logger: logger}, nil
	}
	return smtp.New(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func newBlobStore(ctx context.Context, cfg config.Config) (auth.BlobStore, error) {
	if !cfg.S3.Enabled() {
		return memblob.New("http://localhost:" + cfg.Port + "/files"), nil
	}
	return s3blob.New(ctx, s3blob.Config{
		Bucket:     cfg.S3.Bucket,
		Region:     cfg.S3.Region,
		Endpoint:   cfg.S3.Endpoint,
		Key:        cfg.S3.Key,
		Secret:     cfg.S3.Secret,
		PublicBase: cfg.S3.PublicBase,
	})
}

func newActivitySink(cfg config.Config, logger auth.Logger) (auth.ActivitySink, func(), error) {
	if cfg.ActivityLog == "" {
		return auth.LogActivitySink(logger), func() {}, nil
	}
	f, err := os.OpenFile(cfg.ActivityLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, err
	}
	return activitymap.JSONLines(f), func() { _ = f.Close() }, nil
}
