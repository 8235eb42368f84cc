package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"turnover-sync/core/loader"
	"turnover-sync/core/logger"
	"turnover-sync/core/middleware/auth"
	"turnover-sync/core/middleware/rayid"
	"turnover-sync/feature/integrity"
	"turnover-sync/feature/reservations"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "turnover-sync/docs/swagger"
)

var noSchedule bool

// @title Turnover Sync API
// @version 1.0
// @description Reservation reconciliation for property turnover scheduling.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation server",
	Long:  `Starts the HTTP server, schedules periodic reconciliation runs and initializes all enabled features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context(), false)
		if err != nil {
			return err
		}
		logg := app.logger
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		server := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		mgr := loader.NewManager()
		mgr.Register(reservations.NewFeature(app.service, app.store, logg))
		mgr.Register(integrity.NewFeature(
			integrity.NewService(app.storage, app.cfg.Storage, app.db, app.cfg.Ingest.CatalogPath, logg),
		))

		// RayID first so every later log line can carry it.
		server.Use(rayid.New())
		server.Use(func(c *fiber.Ctx) error {
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

		// Swagger stays public; everything after auth is protected.
		server.Get("/swagger/*", swagger.HandlerDefault)
		server.Use(auth.New(auth.Config{ApiKey: app.cfg.Server.ApiKey}))

		if err := mgr.LoadAll(server); err != nil {
			return err
		}

		var scheduler *cron.Cron
		if !noSchedule && app.cfg.Reconcile.Schedule != "" {
			scheduler = cron.New()
			_, err := scheduler.AddFunc(app.cfg.Reconcile.Schedule, func() {
				if _, shared, err := app.service.Trigger(context.Background()); err != nil {
					logg.Error("Scheduled reconciliation run failed", zap.Error(err))
				} else if shared {
					logg.Info("Scheduled run joined a run already in flight")
				}
			})
			if err != nil {
				return err
			}
			scheduler.Start()
			logg.Info("Scheduled reconciliation runs", zap.String("schedule", app.cfg.Reconcile.Schedule))
		}

		go func() {
			addr := app.cfg.Server.Addr()
			logg.Info("Starting server", zap.String("addr", addr))
			if err := server.Listen(addr); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		if scheduler != nil {
			// Wait for a run in progress to finish.
			<-scheduler.Stop().Done()
		}
		return server.Shutdown()
	},
}

func init() {
	startCmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Serve the API without scheduled runs")
	RootCmd.AddCommand(startCmd)
}
