package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/arxiv"
	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

// Saver persists papers fetched through the search surface.
type Saver interface {
	Save(ctx context.Context, papers []models.Paper) (int, error)
}

// SearchHandler exposes live upstream searches. GET endpoints bypass the
// local store; the POST endpoint also ingests what it finds.
type SearchHandler struct {
	client *arxiv.Client
	saver  Saver
}

func NewSearchHandler(client *arxiv.Client, saver Saver) *SearchHandler {
	return &SearchHandler{
		client: client,
		saver:  saver,
	}
}

// SearchAndIngest runs an upstream search and persists the results, so ad
// hoc queries grow the local store the same way the daily sync does.
func (h *SearchHandler) SearchAndIngest(c *fiber.Ctx) error {
	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"maxResults"`
		Page       int    `json:"page"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.MaxResults < 1 {
		req.MaxResults = 10
	}

	result, err := h.client.Search(c.Context(), arxiv.SearchRequest{
		Query:      req.Query,
		MaxResults: req.MaxResults,
		Start:      (req.Page - 1) * req.MaxResults,
	})
	if err != nil {
		logger.Error("Upstream search failed", zap.String("query", req.Query), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream search failed",
		})
	}

	saved := 0
	if len(result.Papers) > 0 {
		saved, err = h.saver.Save(c.Context(), result.Papers)
		if err != nil {
			logger.Error("Failed to persist search results", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to persist search results",
			})
		}
	}

	return c.JSON(fiber.Map{
		"result": result,
		"saved":  saved,
	})
}

func (h *SearchHandler) SearchByKeyword(c *fiber.Ctx) error {
	keyword := c.Query("q")
	if keyword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q is required",
		})
	}

	maxResults := c.QueryInt("max", 10)
	page := c.QueryInt("page", 1)

	result, err := h.client.SearchByKeyword(c.Context(), keyword, maxResults, page)
	if err != nil {
		logger.Error("Upstream keyword search failed", zap.String("keyword", keyword), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream search failed",
		})
	}

	return c.JSON(result)
}

func (h *SearchHandler) SearchByCategory(c *fiber.Ctx) error {
	category := c.Params("category")
	maxResults := c.QueryInt("max", 10)
	page := c.QueryInt("page", 1)

	startDate := c.Query("startDate")
	endDate := c.Query("endDate")
	if (startDate == "") != (endDate == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "startDate and endDate must be supplied together",
		})
	}

	var err error
	var result interface{}
	if startDate != "" {
		if msg := validateDateRange(startDate, endDate); msg != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}
		result, err = h.client.SearchByCategoryAndDateRange(c.Context(), category, startDate, endDate, maxResults, page)
	} else {
		result, err = h.client.SearchByCategory(c.Context(), category, maxResults, page)
	}
	if err != nil {
		logger.Error("Upstream category search failed", zap.String("category", category), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream search failed",
		})
	}

	return c.JSON(result)
}

func (h *SearchHandler) SearchByAuthor(c *fiber.Ctx) error {
	author := c.Query("author")
	if author == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "author is required",
		})
	}

	result, err := h.client.SearchByAuthor(c.Context(), author, c.QueryInt("max", 10))
	if err != nil {
		logger.Error("Upstream author search failed", zap.String("author", author), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream search failed",
		})
	}

	return c.JSON(result)
}

func (h *SearchHandler) SearchRecent(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be positive",
		})
	}

	result, err := h.client.SearchRecent(c.Context(), days, c.QueryInt("max", 10))
	if err != nil {
		logger.Error("Upstream recent search failed", zap.Int("days", days), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream search failed",
		})
	}

	return c.JSON(result)
}
