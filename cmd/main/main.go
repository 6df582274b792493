package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/anekolabs/whatsapp-admin-api/pkg/env"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/realtime"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/store"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"

	"github.com/anekolabs/whatsapp-admin-api/internal"
	"github.com/anekolabs/whatsapp-admin-api/internal/notify"
)

type Server struct {
	Address string
	Port    string
}

func main() {
	// Initialize Persistence
	dsn := env.MustGetEnvString("POSTGRES_DSN")
	db, err := store.Open(dsn)
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to open datastore")
	}

	// The chat library's device store shares the same pool and manages its
	// own schema via Upgrade.
	container := sqlstore.NewWithDB(db.DB(), "postgres", nil)
	if err := container.Upgrade(context.Background()); err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to upgrade device store schema")
	}

	// Initialize Session Manager
	hub := realtime.NewHub()
	registry := whatsapp.NewRegistry()
	proxyURL := env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", "")
	factory := whatsapp.NewMeowFactory(container, db, proxyURL)
	manager := whatsapp.NewManager(
		whatsapp.ConfigFromEnv(),
		registry,
		db,
		hub,
		whatsapp.SystemClock(),
		factory,
	)
	if mailer := notify.NewMailerFromEnv(); mailer != nil {
		manager.SetNotifier(mailer)
	}

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler:   router.HttpErrorHandler,
		BodyLimit:      router.BodyLimitBytes(),
		ReadBufferSize: 8192, // Headers carry JWT tokens; the default 4096 is too tight
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.RequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Secret",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Load Internal Routes
	internal.Routes(app, internal.Deps{
		Manager: manager,
		Store:   db,
		Hub:     hub,
	})

	// Running Startup Tasks
	go internal.Startup(context.Background(), manager)

	// Running Routines Tasks
	internal.Routines(c, manager)

	// Get Server Configuration with defaults
	var serverConfig Server

	// SERVER_ADDRESS: default "0.0.0.0" (all interfaces)
	serverConfig.Address = env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")

	// SERVER_PORT: default "7001"
	serverConfig.Port = env.GetEnvStringOrDefault("SERVER_PORT", "7001")

	// Start Server
	go func() {
		if err := app.Listen(serverConfig.Address + ":" + serverConfig.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	// Stop background jobs first so nothing races the client teardown.
	c.Stop()

	// Disconnect every registered session, persisting their final state.
	manager.Shutdown(ctxShutdown)

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).Error(err.Error())
	}

	if err := db.Close(); err != nil {
		log.Print(nil).Error(err.Error())
	}
}
