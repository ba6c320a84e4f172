package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// ReasonsHandler serves the reason catalogs.
type ReasonsHandler struct {
	registry *reasons.Registry
}

// NewReasonsHandler constructs handler.
func NewReasonsHandler(registry *reasons.Registry) *ReasonsHandler {
	return &ReasonsHandler{registry: registry}
}

// BlockReasons GET /v1/reasons/block, catch-all last.
func (h *ReasonsHandler) BlockReasons(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewReasonResponses(h.registry.OrderedBlockReasons())})
}

// UnblockReasons GET /v1/reasons/block/:code/unblock.
func (h *ReasonsHandler) UnblockReasons(c *fiber.Ctx) error {
	code := c.Params("code")
	if _, ok := h.registry.Lookup(domain.ReasonKindBlock, code); !ok {
		return apperrors.NewNotFound("block reason", map[string]any{"code": code})
	}
	compatible, required := h.registry.CompatibleUnblockReasons(code)
	return c.JSON(fiber.Map{"data": dto.UnblockReasonsResponse{
		BlockReason: code,
		Required:    required,
		Reasons:     dto.NewReasonResponses(compatible),
	}})
}

// AllUnblockReasons GET /v1/reasons/unblock.
func (h *ReasonsHandler) AllUnblockReasons(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewReasonResponses(h.registry.UnblockReasons())})
}

// CancelReasons GET /v1/reasons/cancel.
func (h *ReasonsHandler) CancelReasons(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewReasonResponses(h.registry.CancelReasons())})
}

// SLAExceptionReasons GET /v1/reasons/sla-exception.
func (h *ReasonsHandler) SLAExceptionReasons(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewReasonResponses(h.registry.SLAExceptionReasons())})
}
