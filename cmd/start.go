package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"card-sync/core/loader"
	"card-sync/core/logger"
	"card-sync/core/middleware/auth"
	"card-sync/core/middleware/rayid"
	"card-sync/feature/integrity"
	"card-sync/feature/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "card-sync/docs/swagger"
)

// @title Card Sync API
// @version 1.0
// @description Triggers and inspects the checkpointed card catalog sync.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the card sync server",
	Long:  `Starts the HTTP server exposing the sync triggers and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Connect dependencies
		a, err := bootstrap(cmd.Context())
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		defer a.Close()
		logg := a.log

		// 2. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 3. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(sync.NewFeature(a.engine, logg))
		mgr.Register(integrity.NewFeature(a.integrityDeps()))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 2.5 Public routes
		app.Get("/swagger/*", swagger.HandlerDefault)
		app.Get("/health", healthHandler(a))

		// 3. Auth (Protect the sync triggers and audits)
		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))

		// 4. Load Features
		loaded, err := mgr.LoadAll(app)
		if err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		// 5. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
			if err := app.Listen(a.cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 6. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(a.cfg.Server.ShutdownTimeout); err != nil {
			logg.Warn("Shutdown did not complete cleanly", zap.Error(err))
		}
	},
}

// healthHandler reports store reachability and collection sizes.
func healthHandler(a *app) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		counts := fiber.Map{}
		for _, coll := range []string{sync.CardsCollection, sync.PricesCollection, sync.CheckpointCollection} {
			n, err := a.store.Count(ctx, coll)
			if err != nil {
				logger.WithRayID(a.log, c).Error("Health check failed", zap.Error(err))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
					"error":  err.Error(),
				})
			}
			counts[coll] = n
		}
		return c.JSON(fiber.Map{
			"status":      "ok",
			"storage":     a.blob != nil,
			"collections": counts,
		})
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
