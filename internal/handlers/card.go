package handlers

import (
	"time"

	"afilia/internal/expiry"
	"afilia/internal/services/membership"
	"afilia/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type CardHandler struct {
	svc membership.Service
}

func NewCardHandler(svc membership.Service) *CardHandler {
	return &CardHandler{svc: svc}
}

func (h *CardHandler) Update(c *fiber.Ctx) error {
	membershipID, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}
	cardID := c.Params("cardId")

	var input membership.CardInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	m, err := h.svc.UpdateCard(c.Context(), userID(c), uint(membershipID), cardID, input)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Card updated", m)
}

func (h *CardHandler) Delete(c *fiber.Ctx) error {
	membershipID, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}
	cardID := c.Params("cardId")

	result, err := h.svc.DeleteCard(c.Context(), userID(c), uint(membershipID), cardID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, result.Message, result)
}

type expiryCheckRequest struct {
	Input string `json:"input"`
}

// CheckExpiry normalizes free-form expiry input and reports whether the
// normalized value is currently acceptable.
func (h *CardHandler) CheckExpiry(c *fiber.Ctx) error {
	var req expiryCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	now := time.Now()
	formatted := expiry.FormatInput(req.Input)
	return response.Success(c, "Expiry evaluated", fiber.Map{
		"formatted": formatted,
		"valid":     expiry.Validate(formatted, now),
		"status":    expiry.Derive(formatted, now),
	})
}
