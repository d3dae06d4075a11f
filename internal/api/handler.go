package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/domain"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/service"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	svc     *service.ChatService
	timeout time.Duration
	log     *zap.Logger
}

func NewHandler(svc *service.ChatService, timeout time.Duration, log *zap.Logger) *Handler {
	return &Handler{svc: svc, timeout: timeout, log: log}
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var in domain.ParticipantInput
	if err := c.BodyParser(&in); err != nil {
		return utils.JSONError(c, fiber.StatusUnprocessableEntity, "invalid request body")
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.Register(ctx, in); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (h *Handler) ListParticipants(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.svc.Participants(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	if out == nil {
		out = []domain.Participant{}
	}
	return c.JSON(out)
}

func (h *Handler) PostMessage(c *fiber.Ctx) error {
	var in domain.MessageInput
	if err := c.BodyParser(&in); err != nil {
		return utils.JSONError(c, fiber.StatusUnprocessableEntity, "invalid request body")
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	if _, err := h.svc.PostMessage(ctx, c.Get(middleware.UserHeader), in); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (h *Handler) ListMessages(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return utils.JSONError(c, fiber.StatusUnprocessableEntity, "limit must be a positive integer")
		}
		limit = n
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.svc.Messages(ctx, c.Get(middleware.UserHeader), limit)
	if err != nil {
		return h.fail(c, err)
	}
	if out == nil {
		out = []domain.Message{}
	}
	return c.JSON(out)
}

func (h *Handler) RefreshStatus(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.RefreshStatus(ctx, c.Get(middleware.UserHeader)); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) EditMessage(c *fiber.Ctx) error {
	var in domain.MessageInput
	if err := c.BodyParser(&in); err != nil {
		return utils.JSONError(c, fiber.StatusUnprocessableEntity, "invalid request body")
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.EditMessage(ctx, c.Get(middleware.UserHeader), c.Params("id"), in); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) DeleteMessage(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.DeleteMessage(ctx, c.Get(middleware.UserHeader), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) ctx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// fail maps service errors to status codes; anything unknown is logged and sent back as a 500.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var invalid *service.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		return utils.JSONValidationError(c, invalid.Fields)
	case errors.Is(err, service.ErrNameTaken), errors.Is(err, service.ErrSenderNotFound):
		return utils.JSONError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrParticipantNotFound), errors.Is(err, service.ErrMessageNotFound):
		return utils.JSONError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotMessageOwner):
		return utils.JSONError(c, fiber.StatusUnauthorized, err.Error())
	}
	h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return utils.JSONError(c, fiber.StatusInternalServerError, err.Error())
}
