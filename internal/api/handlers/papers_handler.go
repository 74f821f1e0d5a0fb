package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/papers"
	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

const dateLayout = "2006-01-02"

type PapersHandler struct {
	service *papers.Service
}

func NewPapersHandler(service *papers.Service) *PapersHandler {
	return &PapersHandler{
		service: service,
	}
}

// ListPapers serves GET /api/v1/papers with optional category, keyword, date
// range and github filters.
func (h *PapersHandler) ListPapers(c *fiber.Ctx) error {
	filters, errMsg := parseFilters(c)
	if errMsg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errMsg,
		})
	}

	result, err := h.service.Query(c.Context(), filters)
	if err != nil {
		logger.Error("Failed to query papers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query papers",
		})
	}

	return c.JSON(result)
}

func (h *PapersHandler) GetPaper(c *fiber.Ctx) error {
	arxivID := c.Params("id")
	if arxivID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Paper id is required",
		})
	}

	paper, err := h.service.GetPaper(c.Context(), arxivID)
	if err != nil {
		logger.Error("Failed to get paper", zap.String("arxiv_id", arxivID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get paper",
		})
	}
	if paper == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Paper not found",
		})
	}

	return c.JSON(paper)
}

func (h *PapersHandler) GetPapersBatch(c *fiber.Ctx) error {
	var req struct {
		IDs []string `json:"ids"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one id is required",
		})
	}

	result, err := h.service.GetPapers(c.Context(), req.IDs)
	if err != nil {
		logger.Error("Failed to get papers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get papers",
		})
	}

	return c.JSON(fiber.Map{
		"papers": result,
		"count":  len(result),
	})
}

func (h *PapersHandler) GetCategoryCounts(c *fiber.Ctx) error {
	startDate := c.Query("startDate")
	endDate := c.Query("endDate")

	if (startDate == "") != (endDate == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "startDate and endDate must be supplied together",
		})
	}
	if startDate != "" {
		if msg := validateDateRange(startDate, endDate); msg != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}
	}

	counts, err := h.service.CategoryCounts(c.Context(), startDate, endDate)
	if err != nil {
		logger.Error("Failed to count papers by category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count papers",
		})
	}

	var total int64
	for _, cc := range counts {
		total += cc.Count
	}

	return c.JSON(fiber.Map{
		"counts": counts,
		"total":  total,
	})
}

func parseFilters(c *fiber.Ctx) (models.PaperFilters, string) {
	filters := models.PaperFilters{
		Keyword: c.Query("keyword"),
		Page:    c.QueryInt("page", 1),
		Size:    c.QueryInt("size", 10),
	}

	if raw := c.Query("category"); raw != "" {
		for _, cat := range strings.Split(raw, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				filters.Categories = append(filters.Categories, cat)
			}
		}
	}

	filters.StartDate = c.Query("startDate")
	filters.EndDate = c.Query("endDate")
	if (filters.StartDate == "") != (filters.EndDate == "") {
		return filters, "startDate and endDate must be supplied together"
	}
	if filters.HasDateRange() {
		if msg := validateDateRange(filters.StartDate, filters.EndDate); msg != "" {
			return filters, msg
		}
	}

	if raw := c.Query("hasGithub"); raw != "" {
		hasGithub, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, "hasGithub must be true or false"
		}
		filters.HasGithub = &hasGithub
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Size < 1 || filters.Size > 100 {
		filters.Size = 10
	}

	return filters, ""
}

func validateDateRange(startDate, endDate string) string {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return "startDate must be YYYY-MM-DD"
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return "endDate must be YYYY-MM-DD"
	}
	if end.Before(start) {
		return "endDate must not be before startDate"
	}
	return ""
}
