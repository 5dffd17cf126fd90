package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hitl-service/internal/api/dto"
	"github.com/spec-kit/hitl-service/internal/service"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

const sessionCookieName = "hitl_session"

// OperatorsHandler exposes operator session endpoints.
type OperatorsHandler struct {
	operators *service.OperatorService
}

// NewOperatorsHandler constructs handler.
func NewOperatorsHandler(operatorService *service.OperatorService) *OperatorsHandler {
	return &OperatorsHandler{operators: operatorService}
}

// Register handles POST /auth/operators/register.
func (h *OperatorsHandler) Register(c *fiber.Ctx) error {
	var req dto.OperatorRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	operator, token, exp, err := h.operators.Register(c.UserContext(), req.Email, req.FullName, req.Password)
	if err != nil {
		return err
	}

	setSessionCookie(c, token, exp)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"operator": fiber.Map{
				"id":        operator.ID,
				"email":     operator.Email,
				"full_name": operator.FullName,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Login handles POST /auth/operators/login.
func (h *OperatorsHandler) Login(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	operator, token, exp, err := h.operators.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	setSessionCookie(c, token, exp)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"operator": fiber.Map{
				"id":        operator.ID,
				"email":     operator.Email,
				"full_name": operator.FullName,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

func setSessionCookie(c *fiber.Ctx, token string, exp time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Expires:  exp,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
