package handlers

import (
	"errors"

	"afilia/internal/models"
	"afilia/internal/services/membership"
	"afilia/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type MembershipHandler struct {
	svc membership.Service
}

func NewMembershipHandler(svc membership.Service) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

func userID(c *fiber.Ctx) uint {
	claims := c.Locals("claims").(*models.UserClaims)
	return claims.UserID
}

// serviceError maps engine error kinds onto HTTP statuses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, membership.ErrNotFound), errors.Is(err, membership.ErrCardNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, membership.ErrValidation):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, membership.ErrConflict):
		return response.Conflict(c, err.Error())
	case errors.Is(err, membership.ErrStoreUnavailable):
		return response.Error(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		return response.ServerError(c, err.Error())
	}
}

type createBankMembershipRequest struct {
	Name  string                 `json:"name"`
	Cards []membership.CardInput `json:"cards"`
}

func (h *MembershipHandler) CreateBank(c *fiber.Ctx) error {
	var req createBankMembershipRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	m, err := h.svc.CreateBankMembership(c.Context(), userID(c), req.Name, req.Cards)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Bank membership saved", m)
}

func (h *MembershipHandler) Create(c *fiber.Ctx) error {
	var input membership.CreateMembershipInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	m, err := h.svc.CreateMembership(c.Context(), userID(c), input)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Membership created", m)
}

func (h *MembershipHandler) List(c *fiber.Ctx) error {
	memberships, err := h.svc.ListMemberships(c.Context(), userID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Memberships retrieved", memberships)
}

func (h *MembershipHandler) ListActive(c *fiber.Ctx) error {
	items, err := h.svc.ListActive(c.Context(), userID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Active items retrieved", items)
}

func (h *MembershipHandler) ListInactive(c *fiber.Ctx) error {
	items, err := h.svc.ListInactive(c.Context(), userID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Inactive items retrieved", items)
}

func (h *MembershipHandler) Get(c *fiber.Ctx) error {
	membershipID, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}
	m, err := h.svc.GetMembership(c.Context(), userID(c), uint(membershipID))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Membership retrieved", m)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus drives the two-phase optimistic flow: the mutation is
// staged, committed, and rolled back by the command itself if the
// store write fails.
func (h *MembershipHandler) SetStatus(c *fiber.Ctx) error {
	membershipID, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}
	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	cmd, err := h.svc.StageStatusChange(c.Context(), userID(c), uint(membershipID), req.Status)
	if err != nil {
		return serviceError(c, err)
	}
	if err := cmd.Commit(c.Context()); err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Membership status updated", cmd.Optimistic)
}

func (h *MembershipHandler) Delete(c *fiber.Ctx) error {
	membershipID, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}
	if err := h.svc.DeleteMembership(c.Context(), userID(c), uint(membershipID)); err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Membership deleted", nil)
}

func (h *MembershipHandler) Consolidate(c *fiber.Ctx) error {
	report, err := h.svc.ConsolidateDuplicates(c.Context(), userID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Duplicates consolidated", report)
}
