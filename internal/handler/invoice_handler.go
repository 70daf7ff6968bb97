package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kartarkiv/invoice-service/internal/domain"
	"github.com/kartarkiv/invoice-service/internal/mailer"
	"github.com/kartarkiv/invoice-service/internal/observability"
	"github.com/kartarkiv/invoice-service/internal/service"
)

const dateLayout = "2006-01-02"

type InvoiceService interface {
	SendStored(ctx context.Context, invoiceID int64, overrides service.SendOverrides) (*service.CreateAndSendResult, error)
}

type InvoiceHandler struct {
	service  InvoiceService
	validate *validator.Validate
}

func NewInvoiceHandler(service InvoiceService) (*InvoiceHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("invoice service is required")
	}
	return &InvoiceHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func RegisterInvoiceRoutes(router fiber.Router, service InvoiceService) error {
	h, err := NewInvoiceHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/invoices/:id/send", h.SendInvoice)

	return nil
}

type sendInvoiceRequest struct {
	BuyerEmail    string `json:"buyerEmail" validate:"omitempty,email"`
	DueDate       string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	AccountNumber string `json:"accountNumber" validate:"omitempty,min=11,max=13"`
}

type sendInvoiceResponse struct {
	InvoiceID     int64  `json:"invoiceId"`
	Status        string `json:"status"`
	KID           string `json:"kid"`
	AccountNumber string `json:"accountNumber"`
	DueDate       string `json:"dueDate"`
	Provider      string `json:"provider"`
	MessageID     string `json:"messageId,omitempty"`
	Attempts      int    `json:"attempts"`
}

func (h *InvoiceHandler) SendInvoice(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Params("id")), 10, 64)
	if err != nil || id <= 0 {
		return toHTTPError(fmt.Errorf("%w: invoice id must be a positive integer", domain.ErrValidation))
	}

	var req sendInvoiceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	overrides, err := h.toOverrides(req)
	if err != nil {
		return toHTTPError(err)
	}

	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))
	c.SetUserContext(ctx)
	res, err := h.service.SendStored(ctx, id, overrides)
	if err != nil {
		return toHTTPError(err)
	}

	resp := sendInvoiceResponse{
		InvoiceID:     id,
		Status:        domain.StatusInvoiceRequested.String(),
		KID:           res.KID,
		AccountNumber: res.AccountNumber,
		DueDate:       res.DueDate.Format(dateLayout),
	}
	if res.Delivery != nil {
		resp.Provider = res.Delivery.Provider.String()
		resp.MessageID = res.Delivery.MessageID
		resp.Attempts = res.Delivery.Attempts
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *InvoiceHandler) toOverrides(req sendInvoiceRequest) (service.SendOverrides, error) {
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return service.SendOverrides{}, fmt.Errorf("%w: %s is invalid", domain.ErrValidation, jsonFieldName(verrs[0].Field()))
		}
		return service.SendOverrides{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	overrides := service.SendOverrides{
		BuyerEmail:    strings.TrimSpace(req.BuyerEmail),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
	}
	if raw := strings.TrimSpace(req.DueDate); raw != "" {
		due, err := time.Parse(dateLayout, raw)
		if err != nil {
			return service.SendOverrides{}, fmt.Errorf("%w: dueDate must be YYYY-MM-DD", domain.ErrValidation)
		}
		overrides.DueDate = &due
	}

	return overrides, nil
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toHTTPError(err error) error {
	var de *mailer.DeliveryError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, mailer.ErrOverallTimeout):
		return fmt.Errorf("%w: %w", fiber.NewError(fiber.StatusGatewayTimeout, "invoice email delivery timed out"), err)
	case errors.As(err, &de):
		return fmt.Errorf("%w: %w", fiber.NewError(fiber.StatusBadGateway, "invoice email delivery failed"), err)
	default:
		return err
	}
}
