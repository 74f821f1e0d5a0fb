package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/ingest"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

type SyncHandler struct {
	job *ingest.Job
}

func NewSyncHandler(job *ingest.Job) *SyncHandler {
	return &SyncHandler{
		job: job,
	}
}

// TriggerSync starts a sync run in the background. A run already in flight
// yields 409 instead of queueing a second one.
func (h *SyncHandler) TriggerSync(c *fiber.Ctx) error {
	if h.job.Running() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Sync already in progress",
		})
	}

	go func() {
		if _, err := h.job.Run(context.Background()); err != nil && !errors.Is(err, ingest.ErrSyncInProgress) {
			logger.Error("Manual sync failed", zap.Error(err))
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "started",
	})
}

func (h *SyncHandler) SyncStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"running": h.job.Running(),
	})
}
