package controllers

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/getchainhub/chainhub/lib/service"
)

// GetInfoController : service metadata
type GetInfoController struct {
	svc *service.ChainhubService
}

func NewGetInfoController(svc *service.ChainhubService) *GetInfoController {
	return &GetInfoController{svc: svc}
}

type GetInfoResponseBody struct {
	Currencies []string `json:"currencies"`
	// collection wallet addresses, never keys
	CollectionWallets map[string]string `json:"collection_wallets"`
}

func (controller *GetInfoController) GetInfo(c echo.Context) error {
	currencies := make([]string, 0, len(controller.svc.Providers))
	for currency := range controller.svc.Providers {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	return c.JSON(http.StatusOK, &GetInfoResponseBody{
		Currencies:        currencies,
		CollectionWallets: controller.svc.CollectionWallets,
	})
}
