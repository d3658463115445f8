package integrity

import (
	"errors"

	"card-sync/core/logger"
	"card-sync/feature/sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/hashes", h.HandleHashCheck)
	group.Get("/images", h.HandleImageCheck)
	group.Get("/schema", h.HandleSchemaCheck)
}

// HandleIntegrityCheck triggers all integrity checks.
// @Summary Run All Integrity Checks
// @Description Performs every read-only integrity check (Hashes for cards and prices, Images, Schema). This operation may take a long time.
// @Tags integrity
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.Context()
	report := make(map[string]interface{})

	for _, processor := range []string{sync.ProcessorCards, sync.ProcessorPrices} {
		if hr, err := h.service.CheckHashes(ctx, processor); err != nil {
			report["hashes_"+processor] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			report["hashes_"+processor] = hr
		}
	}

	if ir, err := h.service.CheckImages(ctx); err != nil {
		report["images"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		report["images"] = ir
	}

	if sr, err := h.service.CheckSchema(); err != nil {
		report["schema"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		report["schema"] = sr
	}

	return c.JSON(report)
}

// HandleHashCheck audits and optionally repairs a fingerprint cache.
// @Summary Check Fingerprints
// @Description Compares stored fingerprints with the records of a processor. With fix, orphaned and mismatched fingerprints are dropped so the next sync rewrites them.
// @Tags integrity
// @Accept json
// @Produce json
// @Param processor query string false "Processor (cards or prices)" default(cards)
// @Param fix query boolean false "Drop drifted fingerprints"
// @Success 200 {object} checks.HashReport "Hash Report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/hashes [get]
func (h *Handler) HandleHashCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	processor := c.Query("processor", sync.ProcessorCards)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckHashes(c.Context(), processor)
	if errors.Is(err, ErrUnknownProcessor) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Hash check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !report.Clean() {
		l.Warn("Fingerprint drift detected",
			zap.String("processor", processor),
			zap.Int("orphans", len(report.Orphans)),
			zap.Int("mismatched", len(report.Mismatched)))

		if fix {
			n, err := h.service.FixHashes(c.Context(), report)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   "Failed to fix fingerprints",
					"details": err.Error(),
				})
			}
			return c.JSON(fiber.Map{
				"status": "fixed",
				"fixed":  n,
				"report": report,
			})
		}
	}

	return c.JSON(report)
}

// HandleImageCheck checks and optionally requeues card images.
// @Summary Check Card Images
// @Description Verifies that every card marked processed has its image object in storage. With fix, missing images are queued again.
// @Tags integrity
// @Accept json
// @Produce json
// @Param fix query boolean false "Requeue missing images"
// @Success 200 {object} checks.ImageReport "Image Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 503 {object} map[string]string "Storage not configured"
// @Router /integrity/images [get]
func (h *Handler) HandleImageCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckImages(c.Context())
	if errors.Is(err, ErrStorageDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Image check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if len(report.Missing) > 0 && fix {
		n, err := h.service.FixImages(c.Context(), report)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to requeue images",
				"details": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status": "fixed",
			"fixed":  n,
			"report": report,
		})
	}

	return c.JSON(report)
}

// HandleSchemaCheck checks the document store schema.
// @Summary Check Store Schema
// @Description Checks if the documents table matches the store model.
// @Tags integrity
// @Accept json
// @Produce json
// @Success 200 {object} checks.SchemaReport "Schema Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/schema [get]
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Starting schema check")

	report, err := h.service.CheckSchema()
	if err != nil {
		l.Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}
