package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"wallgeometry/internal/artifact"
	"wallgeometry/internal/common/config"
	"wallgeometry/internal/common/middleware"
	"wallgeometry/internal/geometryserver/handlers"
	"wallgeometry/internal/pipeline"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Geometry Server
// ============================================================

func main() {
	cfg := config.Load()

	sink, err := artifact.OpenSQLiteSink(sqliteDBPath())
	if err != nil {
		log.Fatalf("Failed to open artifact sink: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Geometry Server",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// ============================================================
	// Pipeline Routes
	// ============================================================

	algoCfg := pipeline.DefaultAlgorithmConfig()
	app.Post("/pipeline/run", handlers.RunPipeline(sink, algoCfg))
	app.Get("/pipeline/jobs/:id/artifacts/:name", handlers.GetArtifact(sink))

	// ============================================================
	// Docs Routes
	// ============================================================

	app.Get("/docs/openapi.yaml", handlers.SwaggerSpec)
	app.Get("/docs", handlers.SwaggerUI)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting Geometry Server on %s (env: %s)", addr, cfg.Environment)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func sqliteDBPath() string {
	if v := os.Getenv("ARTIFACT_DB_PATH"); v != "" {
		return v
	}
	return "./data/artifacts.db"
}
