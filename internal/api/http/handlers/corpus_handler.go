package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-snapshot-service/internal/api/dto"
	"github.com/spec-kit/bug-snapshot-service/internal/service"
	apperrors "github.com/spec-kit/bug-snapshot-service/pkg/util"
)

// CorpusHandler serves corpus-wide maintenance endpoints.
type CorpusHandler struct {
	service *service.SnapshotService
}

// NewCorpusHandler constructs handler.
func NewCorpusHandler(snapshotService *service.SnapshotService) *CorpusHandler {
	return &CorpusHandler{service: snapshotService}
}

// Validate POST /corpus/validate runs the strict batch validator. With
// purge=true failing records are deleted for re-fetch.
func (h *CorpusHandler) Validate(c *fiber.Ctx) error {
	purge := c.QueryBool("purge", false)

	report, err := h.service.ValidateCorpus(c.UserContext(), purge)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewValidationResponse(report, purge)})
}

// Ingest POST /corpus/records upserts records into the store.
func (h *CorpusHandler) Ingest(c *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Bugs) == 0 {
		return apperrors.NewValidationError("bugs required", nil)
	}

	stored, err := h.service.Ingest(c.UserContext(), req.Bugs)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.IngestResponse{Stored: stored}})
}
