package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-snapshot-service/internal/api/dto"
	"github.com/spec-kit/bug-snapshot-service/internal/service"
	apperrors "github.com/spec-kit/bug-snapshot-service/pkg/util"
)

// BugsHandler serves corpus records and their snapshots.
type BugsHandler struct {
	service *service.SnapshotService
}

// NewBugsHandler constructs handler.
func NewBugsHandler(snapshotService *service.SnapshotService) *BugsHandler {
	return &BugsHandler{service: snapshotService}
}

// GetBug GET /bugs/:id.
func (h *BugsHandler) GetBug(c *fiber.Ctx) error {
	id, err := parseBugID(c)
	if err != nil {
		return err
	}
	bug, err := h.service.GetBug(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": bug})
}

// GetSnapshot GET /bugs/:id/snapshot rolls the record back to creation
// time. Query flags: strict, nocache.
func (h *BugsHandler) GetSnapshot(c *fiber.Ctx) error {
	id, err := parseBugID(c)
	if err != nil {
		return err
	}
	strict := c.QueryBool("strict", false)
	useCache := !c.QueryBool("nocache", false)

	result, err := h.service.Snapshot(c.UserContext(), id, service.ChangeMatch{}, strict, useCache)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSnapshotResponse(result)})
}

// PostSnapshot POST /bugs/:id/snapshot rolls the record back to the
// boundary the request's change match selects.
func (h *BugsHandler) PostSnapshot(c *fiber.Ctx) error {
	id, err := parseBugID(c)
	if err != nil {
		return err
	}
	var req dto.SnapshotRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Match.IsZero() {
		return apperrors.NewValidationError("match must name a field, added or removed value", nil)
	}
	useCache := !c.QueryBool("nocache", false)

	result, err := h.service.Snapshot(c.UserContext(), id, req.Match, req.Strict, useCache)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSnapshotResponse(result)})
}

// DeleteBug DELETE /bugs/:id purges a record from the corpus.
func (h *BugsHandler) DeleteBug(c *fiber.Ctx) error {
	id, err := parseBugID(c)
	if err != nil {
		return err
	}
	if err := h.service.PurgeRecord(c.UserContext(), id, "manual purge"); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseBugID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid bug id", nil)
	}
	return id, nil
}
