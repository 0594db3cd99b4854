package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/db/store"
	"github.com/getchainhub/chainhub/lib/responses"
	"github.com/getchainhub/chainhub/lib/service"
)

// InvoiceController : invoice creation and lookup
type InvoiceController struct {
	svc *service.ChainhubService
}

func NewInvoiceController(svc *service.ChainhubService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type CreateInvoiceRequestBody struct {
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Currency string          `json:"currency" validate:"required"`
}

type CreateInvoiceResponseBody struct {
	InvoiceID string          `json:"invoice_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Address   string          `json:"address"`
}

type InvoiceResponseBody struct {
	InvoiceID       string          `json:"invoice_id"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	Address         string          `json:"address"`
	Status          string          `json:"status"`
	ObservedBalance decimal.Decimal `json:"observed_balance"`
	SweepTxRef      string          `json:"sweep_tx_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	// pointer so an invoice that was never checked omits the field instead of
	// serializing the zero time
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

type StatusResponseBody struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
}

func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	var body CreateInvoiceRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.CreateInvoice(c.Request().Context(), body.Amount, body.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedCurrency):
			return c.JSON(http.StatusBadRequest, responses.UnsupportedCurrencyError)
		case errors.Is(err, service.ErrInvalidAmount):
			return c.JSON(http.StatusBadRequest, responses.InvalidAmountError)
		case errors.Is(err, chain.ErrRejected):
			return c.JSON(http.StatusBadGateway, responses.ProviderRejectedError)
		case errors.Is(err, chain.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, responses.ProviderUnavailableError)
		default:
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
	}

	return c.JSON(http.StatusOK, &CreateInvoiceResponseBody{
		InvoiceID: invoice.ID,
		Currency:  invoice.Currency,
		Amount:    invoice.TargetAmount,
		Address:   invoice.Address,
	})
}

func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	invoice, err := controller.svc.GetInvoice(c.Request().Context(), c.Param("invoice_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		}
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	body := &InvoiceResponseBody{
		InvoiceID:       invoice.ID,
		Currency:        invoice.Currency,
		Amount:          invoice.TargetAmount,
		Address:         invoice.Address,
		Status:          invoice.State,
		ObservedBalance: invoice.ObservedBalance,
		SweepTxRef:      invoice.SweepTxRef,
		CreatedAt:       invoice.CreatedAt,
	}
	if !invoice.LastCheckedAt.IsZero() {
		checkedAt := invoice.LastCheckedAt.Time
		body.LastCheckedAt = &checkedAt
	}
	return c.JSON(http.StatusOK, body)
}

func (controller *InvoiceController) GetStatus(c echo.Context) error {
	invoice, err := controller.svc.GetInvoice(c.Request().Context(), c.Param("invoice_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		}
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &StatusResponseBody{
		InvoiceID: invoice.ID,
		Status:    invoice.State,
	})
}
