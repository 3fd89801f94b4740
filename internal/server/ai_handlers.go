package server

import (
	"strconv"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Translate handles POST /api/ai/translate
func (s *Server) Translate(c *fiber.Ctx) error {
	var in service.TranslateInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	res, err := s.aiService.Translate(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"originalText":   res.OriginalText,
		"translatedText": res.TranslatedText,
		"targetLang":     res.TargetLang,
	})
}

// GenerateTags handles POST /api/ai/tags
func (s *Server) GenerateTags(c *fiber.Ctx) error {
	var in service.GenerateTagsInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	tags, err := s.aiService.GenerateTags(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "tags": tags})
}

// SearchPosts handles GET /api/ai/search?q=...&limit=...
// @Summary Semantic post search
// @Tags ai
// @Produce json
// @Param q query string true "Query"
// @Param limit query int false "Maximum results (1-50, default 10)"
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ai/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	in := service.SearchInput{Query: c.Query("q"), ViewerClerkID: middleware.ClerkID(c)}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("limit must be an integer"))
		}
		in.Limit = limit
	}

	res, err := s.aiService.Search(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"posts":     res.Posts,
		"total":     res.Total,
		"keywords":  res.Keywords,
		"aiSummary": res.AISummary,
	})
}
