package sync

import (
	"errors"

	"card-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP sync triggers.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/cards", h.HandleSyncCards)
	group.Post("/prices", h.HandleSyncPrices)
	group.Get("/checkpoints/:runId", h.HandleGetCheckpoint)
	group.Delete("/checkpoints/:runId", h.HandleDeleteCheckpoint)
}

// HandleSyncCards runs the card sync.
// @Summary Sync Cards
// @Description Reconcile catalog cards into the document store. Long runs pause and can be resumed.
// @Tags sync
// @Accept json
// @Produce json
// @Param options body Options false "Run options"
// @Success 200 {object} Result "Run result"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 409 {object} map[string]string "Run in progress"
// @Failure 500 {object} Result "Checkpoint failure"
// @Router /sync/cards [post]
func (h *Handler) HandleSyncCards(c *fiber.Ctx) error {
	return h.run(c, ProcessorCards)
}

// HandleSyncPrices runs the price sync.
// @Summary Sync Prices
// @Description Reconcile catalog prices and record the daily price history.
// @Tags sync
// @Accept json
// @Produce json
// @Param options body Options false "Run options"
// @Success 200 {object} Result "Run result"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 409 {object} map[string]string "Run in progress"
// @Failure 500 {object} Result "Checkpoint failure"
// @Router /sync/prices [post]
func (h *Handler) HandleSyncPrices(c *fiber.Ctx) error {
	return h.run(c, ProcessorPrices)
}

func (h *Handler) run(c *fiber.Ctx, processor string) error {
	l := logger.WithRayID(h.service.logger, c)

	var opts Options
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}
	if opts.Limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must not be negative",
		})
	}

	var (
		res *Result
		err error
	)
	switch processor {
	case ProcessorPrices:
		res, err = h.service.SyncPrices(c.Context(), opts)
	default:
		res, err = h.service.SyncCards(c.Context(), opts)
	}
	if errors.Is(err, ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		l.Error("Sync run failed", zap.String("processor", processor), zap.Error(err))
		if res != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(res)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(res)
}

// HandleGetCheckpoint returns the stored checkpoint of a run.
// @Summary Get Checkpoint
// @Description Get the persisted progress of a paused or partially failed run.
// @Tags sync
// @Produce json
// @Param runId path string true "Run ID (e.g. 'cards')"
// @Success 200 {object} Checkpoint "Checkpoint"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/checkpoints/{runId} [get]
func (h *Handler) HandleGetCheckpoint(c *fiber.Ctx) error {
	runID := c.Params("runId")
	l := logger.WithRayID(h.service.logger, c)

	cp, err := h.service.Checkpoint(c.Context(), runID)
	if err != nil {
		l.Error("Checkpoint lookup failed", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if cp == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "checkpoint not found",
		})
	}
	return c.JSON(cp)
}

// HandleDeleteCheckpoint clears the checkpoint of a run.
// @Summary Clear Checkpoint
// @Description Delete the persisted progress of a run so the next run starts from the beginning.
// @Tags sync
// @Param runId path string true "Run ID"
// @Success 204 "No Content"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/checkpoints/{runId} [delete]
func (h *Handler) HandleDeleteCheckpoint(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if err := h.service.ClearCheckpoint(c.Context(), runID); err != nil {
		logger.WithRayID(h.service.logger, c).Error("Checkpoint delete failed", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
