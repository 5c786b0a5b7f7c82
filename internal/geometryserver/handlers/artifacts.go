package handlers

import (
	"log"

	"wallgeometry/internal/artifact"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Artifact Streaming Handler
// ============================================================

// GetArtifact streams a previously-produced artifact back out of sink.
func GetArtifact(sink artifact.Sink) fiber.Handler {
	return func(c fiber.Ctx) error {
		jobID := c.Params("id")
		name := c.Params("name")

		body, err := sink.Get(c.Context(), jobID, name)
		if err != nil {
			log.Printf("[GEOMETRYSERVER] job=%s artifact=%s not found: %v", jobID, name, err)
			return c.Status(404).JSON(fiber.Map{"error": "artifact not found"})
		}

		c.Set("Content-Type", "application/json")
		return c.Send(body)
	}
}
