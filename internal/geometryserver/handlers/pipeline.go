package handlers

import (
	"bytes"
	"io"
	"log"
	"strings"

	"wallgeometry/internal/artifact"
	"wallgeometry/internal/pipeline"
	"wallgeometry/internal/pipeline/stages"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// ============================================================
// Pipeline Run Handler
// ============================================================

// RunPipeline accepts a multipart drawing document plus a layers form
// field, runs the full wall-geometry pipeline against sink, and returns the
// generated job id plus the list of artifact names produced.
func RunPipeline(sink artifact.Sink, cfg pipeline.AlgorithmConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		log.Printf("[GEOMETRYSERVER] Received request")
		log.Printf("[GEOMETRYSERVER] Content-Type: %s", c.Get("Content-Type"))

		file, err := c.FormFile("drawing")
		if err != nil {
			log.Printf("[GEOMETRYSERVER] FormFile error: %v", err)
			return c.Status(400).JSON(fiber.Map{
				"error": "drawing file required in multipart/form-data",
			})
		}

		f, err := file.Open()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to open drawing file"})
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to read drawing file"})
		}

		doc, err := stages.ParseDrawingDocument(bytes.NewReader(data))
		if err != nil {
			log.Printf("[GEOMETRYSERVER] Parse error: %v", err)
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		raw := c.FormValue("layers")
		if raw == "" {
			return c.Status(400).JSON(fiber.Map{"error": "layers form field is required and must not be empty"})
		}
		layers := strings.Split(raw, ",")

		jobID := uuid.NewString()
		executor := pipeline.NewExecutor(stages.All(doc, layers), sink, cfg)

		bundle, err := executor.Run(c.Context(), jobID, &pipeline.Bundle{})
		if err != nil {
			log.Printf("[GEOMETRYSERVER] job=%s pipeline failed: %v", jobID, err)
			return c.Status(500).JSON(fiber.Map{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}

		names, err := sink.List(c.Context(), jobID)
		if err != nil {
			log.Printf("[GEOMETRYSERVER] job=%s artifact list error: %v", jobID, err)
		}

		log.Printf("[GEOMETRYSERVER] job=%s completed, %d artifacts", jobID, len(names))

		return c.JSON(fiber.Map{
			"job_id":    jobID,
			"artifacts": names,
			"wall_rectangle_count": len(bundleRectangles(bundle)),
		})
	}
}

func bundleRectangles(bundle *pipeline.Bundle) []pipeline.TrimmedRectangle {
	if bundle == nil || bundle.LogicF == nil {
		return nil
	}
	return bundle.LogicF.Rectangles
}
