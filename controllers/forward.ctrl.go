package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/common"
	"github.com/getchainhub/chainhub/db/store"
	"github.com/getchainhub/chainhub/lib/responses"
	"github.com/getchainhub/chainhub/lib/service"
)

// ForwardController : on-demand sweeping of paid invoices
type ForwardController struct {
	svc *service.ChainhubService
}

func NewForwardController(svc *service.ChainhubService) *ForwardController {
	return &ForwardController{svc: svc}
}

type ForwardResponseBody struct {
	InvoiceID  string `json:"invoice_id"`
	Forwarded  bool   `json:"forwarded"`
	SweepTxRef string `json:"sweep_tx_ref,omitempty"`
}

func (controller *ForwardController) RequestForward(c echo.Context) error {
	invoice, err := controller.svc.RequestForward(c.Request().Context(), c.Param("invoice_id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		case errors.Is(err, service.ErrNotReady):
			return c.JSON(http.StatusConflict, responses.NotReadyError)
		case errors.Is(err, chain.ErrNoFunds), errors.Is(err, chain.ErrInsufficientReserve):
			return c.JSON(http.StatusConflict, responses.NoFundsToSweepError)
		case errors.Is(err, chain.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, responses.ProviderUnavailableError)
		default:
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
	}

	return c.JSON(http.StatusOK, &ForwardResponseBody{
		InvoiceID:  invoice.ID,
		Forwarded:  invoice.State == common.InvoiceStateForwarded,
		SweepTxRef: invoice.SweepTxRef,
	})
}
