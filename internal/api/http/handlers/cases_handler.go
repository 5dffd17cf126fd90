package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hitl-service/internal/api/dto"
	"github.com/spec-kit/hitl-service/internal/auth"
	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/service"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

// CasesHandler exposes case ingestion, listing, the message ledger and
// resolution.
type CasesHandler struct {
	cases     *service.CaseService
	responder *service.AutoResponder
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService, responder *service.AutoResponder) *CasesHandler {
	return &CasesHandler{cases: caseService, responder: responder}
}

// CreateCase POST /api/cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	record, err := h.cases.CreateCase(c.UserContext(), service.CaseCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Source:      req.Source,
		AgentID:     req.AgentID,
		Priority:    req.Priority,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromCase(record)})
}

// ListCases GET /api/cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	var status *domain.CaseStatus
	if raw := c.Query("status"); raw != "" {
		parsed := domain.CaseStatus(raw)
		status = &parsed
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return apperrors.NewValidationError("limit must be a positive integer", nil)
		}
		limit = parsed
	}

	cases, err := h.cases.ListCases(c.UserContext(), status, limit)
	if err != nil {
		return err
	}
	items := make([]dto.CaseResponse, 0, len(cases))
	for i := range cases {
		items = append(items, dto.FromCase(&cases[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AppendMessage POST /api/cases/:caseId/messages.
func (h *CasesHandler) AppendMessage(c *fiber.Ctx) error {
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	caseID := c.Params("caseId")

	senderID := req.SenderID
	if senderID == nil && req.SenderType == domain.SenderTypeHuman {
		// Web path: attribute the message to the session operator.
		if principal, ok := auth.PrincipalFromContext(c); ok && principal.Operator != nil {
			senderID = &principal.Operator.ID
		}
	}

	msg, err := h.cases.AppendMessage(c.UserContext(), service.AppendMessageInput{
		CaseID:     caseID,
		Content:    req.Content,
		SenderType: req.SenderType,
		SenderID:   senderID,
	})
	if err != nil {
		return err
	}

	aiResponse := h.responder.MaybeRespond(c.UserContext(), caseID, req.RequestAIResponse)

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.AppendMessageResponse{
		Message:    dto.FromMessage(msg),
		AIResponse: aiResponse,
	}})
}

// ListMessages GET /api/cases/:caseId/messages.
func (h *CasesHandler) ListMessages(c *fiber.Ctx) error {
	msgs, err := h.cases.ListMessages(c.UserContext(), c.Params("caseId"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, dto.FromMessage(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ResolveCase POST /api/cases/:caseId/resolve.
func (h *CasesHandler) ResolveCase(c *fiber.Ctx) error {
	record, err := h.cases.ResolveCase(c.UserContext(), c.Params("caseId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromCase(record)})
}
